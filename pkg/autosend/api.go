package autosend

import "context"

// ContactsAPI defines the contact operations of the Autosend SDK.
type ContactsAPI interface {
	// Create creates a new contact.
	Create(ctx context.Context, req ContactRequest) (*Response, error)

	// Upsert creates or updates a contact keyed by email.
	Upsert(ctx context.Context, req ContactRequest) (*Response, error)

	// Get retrieves a contact by ID.
	Get(ctx context.Context, contactID string) (*Response, error)

	// Remove removes contacts by email.
	Remove(ctx context.Context, emails []string) (*Response, error)

	// SearchByEmails looks up contacts by email.
	SearchByEmails(ctx context.Context, emails []string) (*Response, error)

	// BulkUpdate updates many contacts at once.
	BulkUpdate(ctx context.Context, contacts []ContactRequest, runWorkflow bool) (*Response, error)

	// DeleteByUserID deletes a contact by application user ID.
	DeleteByUserID(ctx context.Context, userID string) (*Response, error)

	// DeleteByID deletes a contact by ID.
	DeleteByID(ctx context.Context, contactID string) (*Response, error)

	// GetUnsubscribeGroups lists a contact's unsubscribe groups.
	GetUnsubscribeGroups(ctx context.Context, contactID string) (*Response, error)
}

// SendingAPI defines the email sending operations of the Autosend SDK.
type SendingAPI interface {
	// SendEmail sends a single email.
	SendEmail(ctx context.Context, msg EmailMessage) (*Response, error)

	// SendBulk sends one email to many recipients.
	SendBulk(ctx context.Context, msg BulkEmailMessage) (*Response, error)
}

var (
	_ ContactsAPI = (*Contacts)(nil)
	_ SendingAPI  = (*Sending)(nil)
)
