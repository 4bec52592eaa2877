package notify

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-qa/core"
)

// Template keys
const (
	TemplateNewQuestion         = "new_question"
	TemplateQuestionApproved    = "question_approved"
	TemplateQuestionWasApproved = "question_was_approved"
	TemplateNewAnswer           = "new_answer"
	TemplateAnswerPosted        = "answer_posted"
)

// Settings holds who gets notified and how messages read.
type Settings struct {
	SiteName        string
	FrontendBaseURL string
	ExcerptWords    int

	From                        *mail.Address // nil: the email service's default sender
	CcEmails                    []mail.Address
	InstructorNotificationEmail *mail.Address
	InstructorEmail             *mail.Address // CCed on every message sent to someone else
	Templates                   map[string]string
}

// NewSettings builds Settings from the configuration, dropping invalid addresses.
func NewSettings(conf *core.Config, validate *validator.Validate, logger core.Logger) *Settings {
	nc := conf.Notifications

	address := func(setting, addr, name string) *mail.Address {
		addr = core.CleanString(addr, true /* lower */)
		if addr == "" {
			return nil
		}
		if !core.IsEmail(validate, addr) {
			logger.Warn(fmt.Sprintf("notifications: ignoring invalid %s %q", setting, addr))
			return nil
		}
		return &mail.Address{Name: name, Address: addr}
	}

	s := &Settings{
		SiteName:                    conf.AppName,
		FrontendBaseURL:             conf.FrontendBaseURL,
		ExcerptWords:                conf.QA.ExcerptWords,
		From:                        address("from email", nc.FromEmail, nc.FromName),
		InstructorNotificationEmail: address("instructor notification email", nc.InstructorNotificationEmail, ""),
		InstructorEmail:             address("instructor email", nc.InstructorEmail, ""),
		Templates:                   make(map[string]string, len(nc.Templates)),
	}
	if s.From != nil && s.From.Name == "" {
		s.From.Name = conf.AppName
	}
	for _, cc := range nc.CcEmails {
		if addr := address("cc email", cc, ""); addr != nil {
			s.CcEmails = append(s.CcEmails, *addr)
		}
	}
	for key, tmpl := range nc.Templates {
		s.Templates[key] = tmpl
	}
	return s
}

// ModerationRecipients is the CC list plus the instructor notification address, without duplicates.
// With fallback set, an empty result falls back to the instructor address.
func (s *Settings) ModerationRecipients(fallback bool) []mail.Address {
	recipients := make([]mail.Address, 0, len(s.CcEmails)+1)
	seen := make(map[string]bool)
	add := func(addr mail.Address) {
		key := strings.ToLower(addr.Address)
		if !seen[key] {
			seen[key] = true
			recipients = append(recipients, addr)
		}
	}
	for _, cc := range s.CcEmails {
		add(cc)
	}
	if s.InstructorNotificationEmail != nil {
		add(*s.InstructorNotificationEmail)
	}
	if len(recipients) == 0 && fallback && s.InstructorEmail != nil {
		add(*s.InstructorEmail)
	}
	return recipients
}

// AnswerRecipients are told about every new answer: the moderation recipients plus the sender address.
func (s *Settings) AnswerRecipients() []mail.Address {
	recipients := s.ModerationRecipients(true)
	if s.From == nil {
		return recipients
	}
	for _, r := range recipients {
		if strings.EqualFold(r.Address, s.From.Address) {
			return recipients
		}
	}
	return append(recipients, *s.From)
}

// Render substitutes the {key} placeholders of tmpl with vars. Unknown placeholders are left as is.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, val := range vars {
		pairs = append(pairs, "{"+key+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
