package autosend

import (
	"context"
	"net/http"
	"net/url"
)

// Contacts groups the contact operations. Obtain it from Client.Contacts.
type Contacts struct {
	r *requester
}

// Create creates a new contact.
//
// API: POST /contacts
//
// Idempotency: Not idempotent
//
// Errors:
//   - ValidationError: If the email is missing or malformed.
//   - 409 Conflict: If a contact with that email already exists.
func (c *Contacts) Create(ctx context.Context, req ContactRequest) (*Response, error) {
	payload, err := validateContact(req)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodPost, "/contacts", payload)
}

// Upsert creates a contact or updates the one with the same email.
//
// API: POST /contacts/email
//
// Idempotency: Idempotent
//
// Errors:
//   - ValidationError: If the email is missing or malformed.
//   - 400 Bad Request: If the request payload is invalid.
func (c *Contacts) Upsert(ctx context.Context, req ContactRequest) (*Response, error) {
	payload, err := validateContact(req)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodPost, "/contacts/email", payload)
}

// Get retrieves a contact by its ID.
//
// API: GET /contacts/{id}
//
// Errors:
//   - 404 Not Found: If the contact does not exist.
func (c *Contacts) Get(ctx context.Context, contactID string) (*Response, error) {
	id, err := RequireString("contact_id", contactID)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil)
}

// Remove removes up to MaxBatchSize contacts by email.
//
// API: POST /contacts/remove
func (c *Contacts) Remove(ctx context.Context, emails []string) (*Response, error) {
	payload, err := ValidateEmailList("emails", emails)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodPost, "/contacts/remove", payload)
}

// SearchByEmails looks up up to MaxBatchSize contacts by email.
//
// API: POST /contacts/search/emails
func (c *Contacts) SearchByEmails(ctx context.Context, emails []string) (*Response, error) {
	payload, err := ValidateEmailList("emails", emails)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodPost, "/contacts/search/emails", payload)
}

// BulkUpdate updates up to MaxBatchSize contacts in one request. When
// runWorkflow is set the service triggers the matching workflows.
//
// API: POST /contacts/bulk-update
func (c *Contacts) BulkUpdate(ctx context.Context, contacts []ContactRequest, runWorkflow bool) (*Response, error) {
	normalized, err := ValidateContacts(contacts)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodPost, "/contacts/bulk-update", bulkUpdatePayload{
		Contacts:    normalized,
		RunWorkflow: runWorkflow,
	})
}

// DeleteByUserID deletes the contact carrying the given application user ID.
//
// API: DELETE /contacts/email/userId/{userId}
//
// Errors:
//   - 404 Not Found: If the contact does not exist.
func (c *Contacts) DeleteByUserID(ctx context.Context, userID string) (*Response, error) {
	id, err := RequireString("user_id", userID)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodDelete, "/contacts/email/userId/"+url.PathEscape(id), nil)
}

// DeleteByID deletes a contact by its ID.
//
// API: DELETE /contacts/{id}
//
// Errors:
//   - 404 Not Found: If the contact does not exist.
func (c *Contacts) DeleteByID(ctx context.Context, contactID string) (*Response, error) {
	id, err := RequireString("contact_id", contactID)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(id), nil)
}

// GetUnsubscribeGroups lists the unsubscribe groups of a contact.
//
// API: GET /contacts/{id}/unsubscribe-groups
func (c *Contacts) GetUnsubscribeGroups(ctx context.Context, contactID string) (*Response, error) {
	id, err := RequireString("contact_id", contactID)
	if err != nil {
		return nil, err
	}
	return c.r.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id)+"/unsubscribe-groups", nil)
}
