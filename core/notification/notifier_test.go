package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
)

type mailbox struct {
	sent []*core.EmailMessage
}

func (mb *mailbox) SendMessages(messages ...*core.EmailMessage) {
	mb.sent = append(mb.sent, messages...)
}

func newNotifier() (*Notifier, *mailbox) {
	mb := &mailbox{}
	conf := core.NewTestConfig()
	conf.AppName = "Slopeside"
	return NewNotifier(mb, core.NewTranslators(), conf), mb
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int
		want  string
	}{
		{cents: 0, want: "0.00 EUR"},
		{cents: 5, want: "0.05 EUR"},
		{cents: 12050, want: "120.50 EUR"},
		{cents: -999, want: "-9.99 EUR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMoney(tt.cents, "EUR"))
	}
}

func TestNotifier_localizedSubjects(t *testing.T) {
	n, mb := newNotifier()

	n.Welcome(Recipient{Name: "Anna", Email: "anna@test.com"})
	n.Welcome(Recipient{Name: "Zoé", Email: "zoe@test.com", Locale: "fr-CH"})
	n.Welcome(Recipient{Name: "Jonas", Email: "jonas@test.com", Locale: "de"})

	require.Len(t, mb.sent, 3)
	assert.Equal(t, "Welcome to Slopeside", mb.sent[0].Subject)
	assert.Equal(t, "anna@test.com", mb.sent[0].To[0].Address)
	assert.Equal(t, "Bienvenue sur Slopeside", mb.sent[1].Subject)
	assert.Equal(t, core.LocaleFR, mb.sent[1].Locale)
	assert.Equal(t, core.LocaleEN, mb.sent[2].Locale, "unsupported locales fall back")
}

func TestNotifier_BookingRequested(t *testing.T) {
	n, mb := newNotifier()
	data := BookingData{ID: "b1", ClientName: "Carl", InstructorName: "Ivy", StartDate: "2026-12-20", Total: FormatMoney(20000, "EUR")}

	n.BookingRequested(Recipient{Name: "Ivy", Email: "ivy@test.com"}, Recipient{Name: "Carl", Email: "carl@test.com"}, data)

	require.Len(t, mb.sent, 2)
	request, receipt := mb.sent[0], mb.sent[1]
	assert.Equal(t, "New booking request from Carl", request.Subject)
	assert.True(t, request.ChatNotify)
	assert.Equal(t, "New booking request: Carl -> Ivy (2026-12-20, 200.00 EUR)", request.ChatMessage)
	assert.Equal(t, "Your request to Ivy was sent", receipt.Subject)
	assert.False(t, receipt.ChatNotify)

	td, ok := request.TemplateData.(templateData)
	require.True(t, ok)
	assert.Equal(t, "Ivy", td.Name)
	assert.Equal(t, data, td.Booking)
}

func TestNotifier_OwnershipTransferred(t *testing.T) {
	n, mb := newNotifier()
	n.OwnershipTransferred(Recipient{Name: "Olga", Email: "olga@test.com"}, Recipient{Name: "Hank", Email: "hank@test.com"}, "Alpine Academy")

	require.Len(t, mb.sent, 2)
	prev := mb.sent[0].TemplateData.(templateData)
	next := mb.sent[1].TemplateData.(templateData)
	assert.False(t, prev.Ownership.IsNewOwner)
	assert.True(t, next.Ownership.IsNewOwner)
	assert.Equal(t, "Hank", prev.Ownership.NewOwner)
	assert.Equal(t, "Ownership of Alpine Academy transferred", mb.sent[1].Subject)
}

func TestNotifier_ResortRequestReviewed(t *testing.T) {
	n, mb := newNotifier()
	to := Recipient{Name: "Carl", Email: "carl@test.com"}

	n.ResortRequestReviewed(to, ResortRequestData{Name: "Verbier", Approved: true})
	n.ResortRequestReviewed(to, ResortRequestData{Name: "Nowhere", Note: "not a resort"})

	require.Len(t, mb.sent, 2)
	assert.Equal(t, "Verbier is now listed", mb.sent[0].Subject)
	assert.Equal(t, "Your resort request for Nowhere", mb.sent[1].Subject)
}

func TestNotifier_nil(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.send(&core.EmailMessage{}) })
}
