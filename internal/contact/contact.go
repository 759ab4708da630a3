// Package contact implements the contact form. Submissions are logged and
// acknowledged with a temporary banner; nothing is sent anywhere.
package contact

import (
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kartoza/airscope/internal/logging"
)

// Message is the content of the contact form
type Message struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// MessageFromValues reads the contact fields out of submitted values
func MessageFromValues(values url.Values) Message {
	return Message{
		Name:    values.Get("name"),
		Email:   values.Get("email"),
		Subject: values.Get("subject"),
		Message: values.Get("message"),
	}
}

// Validate returns a message per invalid field, or nil
func (m Message) Validate() map[string]string {
	errs := make(map[string]string)
	required := map[string]string{
		"name":    m.Name,
		"email":   m.Email,
		"subject": m.Subject,
		"message": m.Message,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			errs[field] = "Please fill out this field."
		}
	}
	if _, ok := errs["email"]; !ok {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			errs["email"] = "Please enter an email address."
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Receipt acknowledges a submission until Until
type Receipt struct {
	ID    string
	Until time.Time
}

// Submitted reports whether the success banner is still showing at now
func (r Receipt) Submitted(now time.Time) bool {
	return now.Before(r.Until)
}

// Remaining is how long the banner stays up after now
func (r Receipt) Remaining(now time.Time) time.Duration {
	if d := r.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Form acknowledges contact submissions for a fixed duration
type Form struct {
	BannerDuration time.Duration
	// OnSubmit, when set, is called for every accepted message
	OnSubmit func(Message)
}

// Submit logs msg and returns a receipt whose banner lasts BannerDuration
// from now. The message goes nowhere else.
func (f Form) Submit(msg Message, now time.Time) Receipt {
	r := Receipt{ID: uuid.New().String(), Until: now.Add(f.BannerDuration)}

	logger := logging.Component("contact")
	logger.Info().
		Str("receipt", r.ID).
		Str("name", msg.Name).
		Str("email", msg.Email).
		Str("subject", msg.Subject).
		Int("message_length", len(msg.Message)).
		Msg("Form submitted")

	if f.OnSubmit != nil {
		f.OnSubmit(msg)
	}
	return r
}
