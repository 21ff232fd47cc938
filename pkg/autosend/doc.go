// Package autosend is a client for the Autosend contact and transactional
// email API.
//
// Every operation follows the same path: arguments are validated locally,
// an authenticated JSON request is built against the configured base URL,
// the request is sent once, and the outcome is returned either as a
// *Response holding the service's JSON body or as one of three error kinds:
//
//   - *ValidationError: an argument failed a client-side check; nothing was sent.
//   - *AuthenticationError: the API key is empty or the service answered 401.
//   - *RequestError: the transport failed or the service answered non-2xx.
//
// All three implement Error, so callers can handle every SDK failure with
// errors.As(err, &autosendErr) or pick out one kind with errors.As on the
// concrete type.
//
//	client, err := autosend.NewSDK(os.Getenv("AUTOSEND_API_KEY"))
//	if err != nil {
//		return err
//	}
//	resp, err := client.Contacts.Create(ctx, autosend.ContactRequest{
//		Email:     "jane@example.com",
//		FirstName: "Jane",
//	})
//
// The client holds no mutable state and may be shared between goroutines.
// There are no retries; cancellation and deadlines come from ctx.
package autosend
