package autosend

import (
	"encoding/json"
	"fmt"
)

// ContactRequest represents the payload for creating or updating a contact.
type ContactRequest struct {
	Email        string         `json:"email"`
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

// Address is a mailbox with an optional display name.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Attachment is a file sent along with an email. Content is base64 encoded.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
}

// UnsubscribeOptions ties an email to an unsubscribe group.
type UnsubscribeOptions struct {
	GroupID string `json:"groupId"`
}

// EmailMessage is a single transactional email.
type EmailMessage struct {
	To          Address             `json:"to"`
	From        Address             `json:"from"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html,omitempty"`
	Text        string              `json:"text,omitempty"`
	DynamicData map[string]any      `json:"dynamicData,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	ReplyTo     *Address            `json:"replyTo,omitempty"`
	Unsubscribe *UnsubscribeOptions `json:"unsubscribe,omitempty"`
}

// Recipient is one entry of a bulk send. DynamicData overrides the
// message-level template data for this recipient.
type Recipient struct {
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	DynamicData map[string]any `json:"dynamicData,omitempty"`
}

// BulkEmailMessage is one email rendered for up to MaxBulkRecipients
// recipients.
type BulkEmailMessage struct {
	Recipients  []Recipient         `json:"recipients"`
	From        Address             `json:"from"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html,omitempty"`
	Text        string              `json:"text,omitempty"`
	DynamicData map[string]any      `json:"dynamicData,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	ReplyTo     *Address            `json:"replyTo,omitempty"`
	Unsubscribe *UnsubscribeOptions `json:"unsubscribe,omitempty"`
}

// sendPayload is the wire shape shared by /mails/send and /mails/bulk.
type sendPayload struct {
	To                 *Address       `json:"to,omitempty"`
	Recipients         []Recipient    `json:"recipients,omitempty"`
	From               Address        `json:"from"`
	Subject            string         `json:"subject"`
	HTML               string         `json:"html,omitempty"`
	Text               string         `json:"text,omitempty"`
	DynamicData        map[string]any `json:"dynamicData,omitempty"`
	Attachments        []Attachment   `json:"attachments,omitempty"`
	ReplyTo            *Address       `json:"replyTo,omitempty"`
	UnsubscribeGroupID string         `json:"unsubscribeGroupId,omitempty"`
}

// bulkUpdatePayload is the wire shape of /contacts/bulk-update.
type bulkUpdatePayload struct {
	Contacts    []ContactRequest `json:"contacts"`
	RunWorkflow bool             `json:"runWorkflow"`
}

// Response is the body the service returned on success. The body is passed
// through as received; the service is the source of truth for its shape.
// A body that is not JSON lands in Text and leaves Body empty.
type Response struct {
	StatusCode int
	Body       json.RawMessage
	Text       string
}

// Decode unmarshals the response body into v. An empty body leaves v
// untouched; a plain-text body is an error.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		if r.Text != "" {
			return fmt.Errorf("failed to decode response: body is not JSON: %q", r.Text)
		}
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Map decodes a JSON object body into a map.
func (r *Response) Map() (map[string]any, error) {
	out := map[string]any{}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
