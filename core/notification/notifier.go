// Package notification composes the transactional emails of the marketplace.
// Delivery is fire-and-forget: the email service logs its own failures.
package notification

import (
	"net/mail"
	"strconv"
	"time"

	"github.com/trezcool/slopeside/core"
)

const dateLayout = "2006-01-02"

type (
	Recipient struct {
		Name   string
		Email  string
		Locale string
	}

	BookingData struct {
		ID             string
		ClientName     string
		InstructorName string
		ResortName     string
		Sport          string
		StartDate      string
		EndDate        string
		HoursPerDay    int
		GroupSize      int
		Total          string
		Message        string
		Reason         string
	}

	ContactData struct {
		Name  string
		Email string
		Phone string
	}

	InvitationData struct {
		SchoolName     string
		InviterName    string
		InstructorName string
		Token          string
		ExpiresAt      string
	}

	OwnershipData struct {
		SchoolName    string
		PreviousOwner string
		NewOwner      string
		IsNewOwner    bool
	}

	ResortRequestData struct {
		Name     string
		Country  string
		Note     string
		Approved bool
	}

	// templateData is what every email template receives as .Data
	templateData struct {
		Name          string
		UID           string
		Token         string
		Booking       BookingData
		Contact       ContactData
		Invitation    InvitationData
		Ownership     OwnershipData
		ResortRequest ResortRequestData
	}
)

// FormatDate formats a day the way emails display it.
func FormatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// FormatMoney formats integer cents, e.g. 12050, "EUR" -> "120.50 EUR".
func FormatMoney(cents int, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	frac := strconv.Itoa(cents % 100)
	if len(frac) < 2 {
		frac = "0" + frac
	}
	return sign + strconv.Itoa(cents/100) + "." + frac + " " + currency
}

type Notifier struct {
	mailSvc core.EmailService
	trans   *core.Translators
	appName string
}

func NewNotifier(mailSvc core.EmailService, trans *core.Translators, conf *core.Config) *Notifier {
	RegisterCatalog(trans)
	return &Notifier{mailSvc: mailSvc, trans: trans, appName: conf.AppName}
}

func (n *Notifier) message(to Recipient, tmpl string, data templateData, subjectParams ...string) *core.EmailMessage {
	locale := core.ResolveLocale(to.Locale)
	data.Name = to.Name
	return &core.EmailMessage{
		To:           []mail.Address{{Name: to.Name, Address: to.Email}},
		Subject:      n.trans.T(locale, subjectKey(tmpl), subjectParams...),
		TemplateName: tmpl,
		TemplateData: data,
		Locale:       locale,
	}
}

func (n *Notifier) send(messages ...*core.EmailMessage) {
	if n == nil || n.mailSvc == nil {
		return
	}
	n.mailSvc.SendMessages(messages...)
}

func (n *Notifier) Welcome(to Recipient) {
	n.send(n.message(to, tmplWelcome, templateData{}, n.appName))
}

func (n *Notifier) PasswordReset(to Recipient, uid, token string) {
	n.send(n.message(to, tmplPasswordReset, templateData{UID: uid, Token: token}, n.appName))
}

// BookingRequested mails the instructor and relays a chat notification; the client gets a receipt.
func (n *Notifier) BookingRequested(instructor, client Recipient, data BookingData) {
	msg := n.message(instructor, tmplBookingRequested, templateData{Booking: data}, data.ClientName)
	msg.ChatNotify = true
	msg.ChatMessage = n.trans.T(core.DefaultLocale, chatBookingRequestedKey,
		data.ClientName, data.InstructorName, data.StartDate, data.Total)

	n.send(msg, n.message(client, tmplBookingReceipt, templateData{Booking: data}, data.InstructorName))
}

func (n *Notifier) BookingAccepted(client Recipient, data BookingData) {
	n.send(n.message(client, tmplBookingAccepted, templateData{Booking: data}, data.InstructorName))
}

func (n *Notifier) BookingDeclined(client Recipient, data BookingData) {
	n.send(n.message(client, tmplBookingDeclined, templateData{Booking: data}, data.InstructorName))
}

func (n *Notifier) BookingCancelled(instructor Recipient, data BookingData) {
	n.send(n.message(instructor, tmplBookingCancelled, templateData{Booking: data}, data.ClientName))
}

// BookingCompleted invites the client to review the lesson.
func (n *Notifier) BookingCompleted(client Recipient, data BookingData) {
	n.send(n.message(client, tmplBookingCompleted, templateData{Booking: data}, data.InstructorName))
}

func (n *Notifier) LeadFeePaid(instructor Recipient, data BookingData, contact ContactData) {
	msg := n.message(instructor, tmplLeadFeePaid, templateData{Booking: data, Contact: contact}, contact.Name)
	msg.ChatNotify = true
	msg.ChatMessage = n.trans.T(core.DefaultLocale, chatLeadFeePaidKey, data.InstructorName, data.ID)
	n.send(msg)
}

func (n *Notifier) InvitationSent(invitee Recipient, data InvitationData) {
	n.send(n.message(invitee, tmplInvitationSent, templateData{Invitation: data}, data.SchoolName))
}

func (n *Notifier) InvitationAccepted(owner Recipient, data InvitationData) {
	n.send(n.message(owner, tmplInvitationAccepted, templateData{Invitation: data}, data.InstructorName))
}

// OwnershipTransferred mails both the previous and the new owner.
func (n *Notifier) OwnershipTransferred(previous, next Recipient, schoolName string) {
	data := OwnershipData{SchoolName: schoolName, PreviousOwner: previous.Name, NewOwner: next.Name}
	prevMsg := n.message(previous, tmplOwnershipTransferred, templateData{Ownership: data}, schoolName)
	data.IsNewOwner = true
	nextMsg := n.message(next, tmplOwnershipTransferred, templateData{Ownership: data}, schoolName)
	n.send(prevMsg, nextMsg)
}

func (n *Notifier) ResortRequestReviewed(requester Recipient, data ResortRequestData) {
	msg := n.message(requester, tmplResortRequestReviewed, templateData{ResortRequest: data}, data.Name)
	if data.Approved {
		msg.Subject = n.trans.T(msg.Locale, resortApprovedKey, data.Name)
	}
	n.send(msg)
}
