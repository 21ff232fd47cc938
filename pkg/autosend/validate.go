package autosend

import (
	"maps"
	"path"
	"strings"
)

const (
	// MaxBulkRecipients is the largest recipient list accepted by SendBulk.
	MaxBulkRecipients = 100
	// MaxBatchSize is the largest list accepted by the bulk contact endpoints.
	MaxBatchSize = 100
	// MaxAttachments is the largest number of attachments on one email.
	MaxAttachments = 20
)

// blockedExtensions are attachment types the service refuses to deliver.
var blockedExtensions = map[string]struct{}{
	".adp": {}, ".app": {}, ".asp": {}, ".bas": {}, ".bat": {}, ".cer": {}, ".chm": {}, ".cmd": {},
	".com": {}, ".cpl": {}, ".crt": {}, ".csh": {}, ".der": {}, ".exe": {}, ".fxp": {}, ".gadget": {},
	".hlp": {}, ".hta": {}, ".inf": {}, ".ins": {}, ".isp": {}, ".its": {}, ".js": {}, ".jse": {},
	".ksh": {}, ".lib": {}, ".lnk": {}, ".mad": {}, ".maf": {}, ".mag": {}, ".mam": {}, ".maq": {},
	".mar": {}, ".mas": {}, ".mat": {}, ".mau": {}, ".mav": {}, ".maw": {}, ".mda": {}, ".mdb": {},
	".mde": {}, ".mdt": {}, ".mdw": {}, ".mdz": {}, ".msc": {}, ".msh": {}, ".msh1": {}, ".msh2": {},
	".mshxml": {}, ".msh1xml": {}, ".msh2xml": {}, ".msi": {}, ".msp": {}, ".mst": {}, ".ops": {},
	".pcd": {}, ".pif": {}, ".plg": {}, ".prf": {}, ".prg": {}, ".reg": {}, ".scf": {}, ".scr": {},
	".sct": {}, ".shb": {}, ".shs": {}, ".sys": {}, ".ps1": {}, ".ps1xml": {}, ".ps2": {},
	".ps2xml": {}, ".psc1": {}, ".psc2": {}, ".tmp": {}, ".url": {}, ".vb": {}, ".vbe": {},
	".vbs": {}, ".vps": {}, ".vsmacros": {}, ".vss": {}, ".vst": {}, ".vsw": {}, ".vxd": {},
	".ws": {}, ".wsc": {}, ".wsf": {}, ".wsh": {}, ".xnk": {},
}

// ValidateEmail checks the basic shape of an email address and returns it
// trimmed. The check is intentionally permissive: one "@", a non-empty local
// part, and a domain containing a dot. The service performs its own checks.
func ValidateEmail(field, value string) (string, error) {
	email := strings.TrimSpace(value)
	if email == "" {
		return "", newValidationError(field, nil, "%s is required", field)
	}
	if strings.Count(email, "@") != 1 {
		return "", newValidationError(field, value, "invalid email address")
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" || !strings.Contains(domain, ".") {
		return "", newValidationError(field, value, "invalid email address")
	}
	return email, nil
}

// RequireString returns the trimmed value, or an error if nothing is left.
func RequireString(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", newValidationError(field, nil, "%s is required", field)
	}
	return trimmed, nil
}

// ValidateEmailList checks that 1 to MaxBatchSize valid addresses were given
// and returns a normalized copy.
func ValidateEmailList(field string, emails []string) ([]string, error) {
	if err := checkSize(field, len(emails), MaxBatchSize); err != nil {
		return nil, err
	}
	out := make([]string, len(emails))
	for i, e := range emails {
		email, err := ValidateEmail(field, e)
		if err != nil {
			return nil, err
		}
		out[i] = email
	}
	return out, nil
}

// ValidateRecipients checks a bulk recipient set and returns a normalized copy.
// Every recipient needs a valid email and a name.
func ValidateRecipients(recipients []Recipient) ([]Recipient, error) {
	if err := checkSize("recipients", len(recipients), MaxBulkRecipients); err != nil {
		return nil, err
	}
	out := make([]Recipient, len(recipients))
	for i, r := range recipients {
		email, err := ValidateEmail("recipients.email", r.Email)
		if err != nil {
			return nil, err
		}
		name, err := RequireString("recipients.name", r.Name)
		if err != nil {
			return nil, err
		}
		out[i] = Recipient{
			Email:       email,
			Name:        name,
			DynamicData: maps.Clone(r.DynamicData),
		}
	}
	return out, nil
}

// ValidateContacts checks a contact batch for BulkUpdate and returns a
// normalized copy.
func ValidateContacts(contacts []ContactRequest) ([]ContactRequest, error) {
	if err := checkSize("contacts", len(contacts), MaxBatchSize); err != nil {
		return nil, err
	}
	out := make([]ContactRequest, len(contacts))
	for i, c := range contacts {
		normalized, err := validateContact(c)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
	}
	return out, nil
}

// ValidateAttachments rejects more than MaxAttachments files, files without
// a name or content, and blocked file types.
func ValidateAttachments(attachments []Attachment) ([]Attachment, error) {
	if len(attachments) > MaxAttachments {
		return nil, newValidationError("attachments", nil, "a maximum of %d attachments is allowed", MaxAttachments)
	}
	if len(attachments) == 0 {
		return nil, nil
	}
	out := make([]Attachment, len(attachments))
	for i, a := range attachments {
		filename, err := RequireString("attachments.filename", a.Filename)
		if err != nil {
			return nil, err
		}
		ext := strings.ToLower(path.Ext(filename))
		if _, blocked := blockedExtensions[ext]; blocked {
			return nil, newValidationError("attachments.filename", filename, "attachment type %q is not supported", ext)
		}
		if strings.TrimSpace(a.Content) == "" {
			return nil, newValidationError("attachments.content", nil, "content is required for %s", filename)
		}
		out[i] = Attachment{
			Filename:    filename,
			Content:     a.Content,
			ContentType: strings.TrimSpace(a.ContentType),
		}
	}
	return out, nil
}

// RequireBody checks that an HTML body, a text body, or both were supplied.
func RequireBody(html, text string) error {
	if strings.TrimSpace(html) == "" && strings.TrimSpace(text) == "" {
		return newValidationError("html", nil, "an email body (HTML or text) is required")
	}
	return nil
}

func validateContact(c ContactRequest) (ContactRequest, error) {
	email, err := ValidateEmail("email", c.Email)
	if err != nil {
		return ContactRequest{}, err
	}
	return ContactRequest{
		Email:        email,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		UserID:       strings.TrimSpace(c.UserID),
		CustomFields: maps.Clone(c.CustomFields),
	}, nil
}

func validateAddress(field string, a Address) (Address, error) {
	email, err := ValidateEmail(field+".email", a.Email)
	if err != nil {
		return Address{}, err
	}
	return Address{Email: email, Name: strings.TrimSpace(a.Name)}, nil
}

func checkSize(field string, n, limit int) error {
	if n == 0 {
		return newValidationError(field, nil, "%s must contain at least one entry", field)
	}
	if n > limit {
		return newValidationError(field, n, "%s must not contain more than %d entries", field, limit)
	}
	return nil
}
