package autosend

import (
	"context"
	"maps"
	"net/http"
	"strings"
)

// Sending groups the email sending operations. Obtain it from Client.Sending.
type Sending struct {
	r *requester
}

// SendEmail sends a single email.
//
// API: POST /mails/send
//
// Errors:
//   - ValidationError: If an address is malformed, the subject or body is
//     missing, or the attachments break the size and type rules.
func (s *Sending) SendEmail(ctx context.Context, msg EmailMessage) (*Response, error) {
	to, err := validateAddress("to", msg.To)
	if err != nil {
		return nil, err
	}
	payload, err := buildSendPayload(msg.From, msg.Subject, msg.HTML, msg.Text, msg.DynamicData, msg.Attachments, msg.ReplyTo, msg.Unsubscribe)
	if err != nil {
		return nil, err
	}
	payload.To = &to
	return s.r.do(ctx, http.MethodPost, "/mails/send", payload)
}

// SendBulk sends one email to between 1 and MaxBulkRecipients recipients.
//
// API: POST /mails/bulk
//
// Errors:
//   - ValidationError: If the recipient list is empty or too large, or any
//     of the SendEmail checks fails.
func (s *Sending) SendBulk(ctx context.Context, msg BulkEmailMessage) (*Response, error) {
	recipients, err := ValidateRecipients(msg.Recipients)
	if err != nil {
		return nil, err
	}
	payload, err := buildSendPayload(msg.From, msg.Subject, msg.HTML, msg.Text, msg.DynamicData, msg.Attachments, msg.ReplyTo, msg.Unsubscribe)
	if err != nil {
		return nil, err
	}
	payload.Recipients = recipients
	return s.r.do(ctx, http.MethodPost, "/mails/bulk", payload)
}

func buildSendPayload(
	from Address,
	subject, html, text string,
	dynamicData map[string]any,
	attachments []Attachment,
	replyTo *Address,
	unsubscribe *UnsubscribeOptions,
) (*sendPayload, error) {
	sender, err := validateAddress("from", from)
	if err != nil {
		return nil, err
	}
	subj, err := RequireString("subject", subject)
	if err != nil {
		return nil, err
	}
	if err := RequireBody(html, text); err != nil {
		return nil, err
	}
	files, err := ValidateAttachments(attachments)
	if err != nil {
		return nil, err
	}

	payload := &sendPayload{
		From:        sender,
		Subject:     subj,
		HTML:        html,
		Text:        text,
		DynamicData: maps.Clone(dynamicData),
		Attachments: files,
	}

	if replyTo != nil && strings.TrimSpace(replyTo.Email) != "" {
		reply, err := validateAddress("reply_to", *replyTo)
		if err != nil {
			return nil, err
		}
		payload.ReplyTo = &reply
	}

	if unsubscribe != nil {
		groupID, err := RequireString("unsubscribe.group_id", unsubscribe.GroupID)
		if err != nil {
			return nil, err
		}
		payload.UnsubscribeGroupID = groupID
	}

	return payload, nil
}
