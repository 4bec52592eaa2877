package notify

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/qa"
)

const emailTemplate = "notification"

// Subjects
const (
	SubjectQuestionApproved    = "Your question has been approved"
	SubjectQuestionWasApproved = "Question was approved"
	SubjectNewAnswer           = "New answer to your question"
	SubjectNewQuestion         = "New question pending approval"
	SubjectAnswerPosted        = "New Answer Posted"
)

// Dispatcher turns moderation events into emails. Sending is fire-and-forget.
type Dispatcher struct {
	settings *Settings
	mailSvc  core.EmailService
	logger   core.Logger
}

var _ qa.Notifier = (*Dispatcher)(nil)

func NewDispatcher(settings *Settings, mailSvc core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{settings: settings, mailSvc: mailSvc, logger: logger}
}

// Dispatch sends the notifications of evt and returns the messages handed to the email service.
func (d *Dispatcher) Dispatch(_ context.Context, evt qa.Event) []*core.EmailMessage {
	if d.settings == nil || d.mailSvc == nil {
		d.logger.Error(fmt.Sprintf("%s notification not sent: settings unavailable", evt.Type), core.ErrDependencyUnavailable)
		return nil
	}

	switch evt.Type {
	case qa.EventQuestionSubmitted:
		return d.questionSubmitted(evt)
	case qa.EventQuestionApproved:
		return d.questionApproved(evt)
	case qa.EventAnswerCreated:
		return d.answerCreated(evt)
	default:
		d.logger.Warn(fmt.Sprintf("no notification for event %q", evt.Type))
		return nil
	}
}

// SendEmail sends body to a single recipient, tagged with categories.
// The instructor address is CCed whenever it differs from the recipient.
func (d *Dispatcher) SendEmail(to mail.Address, subject, body string, categories ...string) *core.EmailMessage {
	msg := &core.EmailMessage{
		From:         d.settings.From,
		To:           []mail.Address{to},
		Subject:      subject,
		BodyStr:      body,
		TemplateName: emailTemplate,
		TemplateData: newNotificationData(body),
		Categories:   categories,
	}
	if cc := d.settings.InstructorEmail; cc != nil && !strings.EqualFold(cc.Address, to.Address) {
		msg.Cc = []mail.Address{*cc}
	}
	d.mailSvc.SendMessages(msg)
	return msg
}

func (d *Dispatcher) questionSubmitted(evt qa.Event) []*core.EmailMessage {
	recipients := d.settings.ModerationRecipients(true)
	if len(recipients) == 0 {
		return nil
	}
	body, ok := d.render(TemplateNewQuestion, map[string]string{
		"site_name":        d.settings.SiteName,
		"question_title":   evt.Question.Title,
		"question_author":  evt.Author.DisplayName(),
		"question_content": evt.Question.Body,
		"question_link":    d.link("moderation", "questions", evt.Question.ID),
		"related_title":    evt.Related.Title,
	})
	if !ok {
		return nil
	}
	return d.sendAll(recipients, SubjectNewQuestion, body, TemplateNewQuestion)
}

func (d *Dispatcher) questionApproved(evt qa.Event) []*core.EmailMessage {
	var sent []*core.EmailMessage
	vars := map[string]string{
		"site_name":      d.settings.SiteName,
		"user_name":      evt.Author.DisplayName(),
		"question_title": evt.Question.Title,
		"question_link":  d.link("questions", evt.Question.ID),
		"related_title":  evt.Related.Title,
	}

	if to, ok := d.authorAddress(evt); ok {
		if body, ok := d.render(TemplateQuestionApproved, vars); ok {
			sent = append(sent, d.SendEmail(to, SubjectQuestionApproved, body, TemplateQuestionApproved))
		}
	}

	if recipients := d.settings.ModerationRecipients(false); len(recipients) > 0 {
		if body, ok := d.render(TemplateQuestionWasApproved, vars); ok {
			sent = append(sent, d.sendAll(recipients, SubjectQuestionWasApproved, body, TemplateQuestionWasApproved)...)
		}
	}
	return sent
}

func (d *Dispatcher) answerCreated(evt qa.Event) []*core.EmailMessage {
	if evt.Answer == nil {
		d.logger.Warn(fmt.Sprintf("answer notification for question %s without answer", evt.Question.ID))
		return nil
	}

	var sent []*core.EmailMessage
	link := d.link("questions", evt.Question.ID) + "?answer_id=" + url.QueryEscape(evt.Answer.ID)
	vars := map[string]string{
		"site_name":      d.settings.SiteName,
		"user_name":      evt.Author.DisplayName(),
		"question_title": evt.Question.Title,
		"answer_author":  evt.Actor.DisplayName(),
		"answer_content": evt.Answer.Body,
		"answer_excerpt": core.Excerpt(evt.Answer.Body, d.settings.ExcerptWords),
		"question_link":  link,
		"related_title":  evt.Related.Title,
	}

	// no need to tell authors about their own answers
	if evt.Author.ID == "" || evt.Author.ID != evt.Actor.ID {
		if to, ok := d.authorAddress(evt); ok {
			if body, ok := d.render(TemplateNewAnswer, vars); ok {
				sent = append(sent, d.SendEmail(to, SubjectNewAnswer, body, TemplateNewAnswer))
			}
		}
	}

	if recipients := d.settings.AnswerRecipients(); len(recipients) > 0 {
		if body, ok := d.render(TemplateAnswerPosted, vars); ok {
			sent = append(sent, d.sendAll(recipients, SubjectAnswerPosted, body, TemplateAnswerPosted)...)
		}
	}
	return sent
}

func (d *Dispatcher) sendAll(recipients []mail.Address, subject, body, category string) []*core.EmailMessage {
	sent := make([]*core.EmailMessage, 0, len(recipients))
	for _, to := range recipients {
		sent = append(sent, d.SendEmail(to, subject, body, category))
	}
	return sent
}

func (d *Dispatcher) authorAddress(evt qa.Event) (mail.Address, bool) {
	if evt.Author.Email == "" {
		d.logger.Warn(fmt.Sprintf("question %s: author has no email address", evt.Question.ID))
		return mail.Address{}, false
	}
	return mail.Address{Name: evt.Author.DisplayName(), Address: evt.Author.Email}, true
}

func (d *Dispatcher) render(key string, vars map[string]string) (string, bool) {
	tmpl := d.settings.Templates[key]
	if strings.TrimSpace(tmpl) == "" {
		d.logger.Warn(fmt.Sprintf("%s template is empty; notification not sent", key))
		return "", false
	}
	return Render(tmpl, vars), true
}

func (d *Dispatcher) link(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return d.settings.FrontendBaseURL + "/" + strings.Join(escaped, "/")
}

// notificationData feeds the notification email templates.
type notificationData struct {
	Text       string
	Paragraphs [][]string // lines of each paragraph
}

func newNotificationData(body string) notificationData {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	data := notificationData{Text: body}
	for _, para := range strings.Split(body, "\n\n") {
		if para = strings.Trim(para, "\n"); para == "" {
			continue
		}
		data.Paragraphs = append(data.Paragraphs, strings.Split(para, "\n"))
	}
	return data
}
