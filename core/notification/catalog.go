package notification

import "github.com/trezcool/slopeside/core"

// email templates
const (
	tmplWelcome               = "welcome"
	tmplPasswordReset         = "password_reset"
	tmplBookingRequested      = "booking_requested"
	tmplBookingReceipt        = "booking_receipt"
	tmplBookingAccepted       = "booking_accepted"
	tmplBookingDeclined       = "booking_declined"
	tmplBookingCancelled      = "booking_cancelled"
	tmplBookingCompleted      = "booking_completed"
	tmplLeadFeePaid           = "lead_fee_paid"
	tmplInvitationSent        = "invitation_sent"
	tmplInvitationAccepted    = "invitation_accepted"
	tmplOwnershipTransferred  = "ownership_transferred"
	tmplResortRequestReviewed = "resort_request_reviewed"
)

func subjectKey(tmpl string) string { return "email." + tmpl + ".subject" }

const (
	chatBookingRequestedKey = "chat.booking_requested"
	chatLeadFeePaidKey      = "chat.lead_fee_paid"
	resortApprovedKey       = "email.resort_request_reviewed.subject.approved"
)

var catalog = map[string]map[string]string{
	core.LocaleEN: {
		subjectKey(tmplWelcome):               "Welcome to {0}",
		subjectKey(tmplPasswordReset):         "Password reset on {0}",
		subjectKey(tmplBookingRequested):      "New booking request from {0}",
		subjectKey(tmplBookingReceipt):        "Your request to {0} was sent",
		subjectKey(tmplBookingAccepted):       "{0} accepted your booking",
		subjectKey(tmplBookingDeclined):       "{0} declined your booking",
		subjectKey(tmplBookingCancelled):      "{0} cancelled their booking",
		subjectKey(tmplBookingCompleted):      "How was your lesson with {0}?",
		subjectKey(tmplLeadFeePaid):           "Contact details of {0}",
		subjectKey(tmplInvitationSent):        "Join {0}",
		subjectKey(tmplInvitationAccepted):    "{0} joined your school",
		subjectKey(tmplOwnershipTransferred):  "Ownership of {0} transferred",
		subjectKey(tmplResortRequestReviewed): "Your resort request for {0}",
		resortApprovedKey:                     "{0} is now listed",
		chatBookingRequestedKey:               "New booking request: {0} -> {1} ({2}, {3})",
		chatLeadFeePaidKey:                    "Lead fee paid by {0} for booking {1}",
	},
	core.LocaleFR: {
		subjectKey(tmplWelcome):               "Bienvenue sur {0}",
		subjectKey(tmplPasswordReset):         "Réinitialisation du mot de passe {0}",
		subjectKey(tmplBookingRequested):      "Nouvelle demande de réservation de {0}",
		subjectKey(tmplBookingReceipt):        "Votre demande à {0} a été envoyée",
		subjectKey(tmplBookingAccepted):       "{0} a accepté votre réservation",
		subjectKey(tmplBookingDeclined):       "{0} a refusé votre réservation",
		subjectKey(tmplBookingCancelled):      "{0} a annulé sa réservation",
		subjectKey(tmplBookingCompleted):      "Comment s'est passé votre cours avec {0} ?",
		subjectKey(tmplLeadFeePaid):           "Coordonnées de {0}",
		subjectKey(tmplInvitationSent):        "Rejoignez {0}",
		subjectKey(tmplInvitationAccepted):    "{0} a rejoint votre école",
		subjectKey(tmplOwnershipTransferred):  "Transfert de {0}",
		subjectKey(tmplResortRequestReviewed): "Votre demande pour {0}",
		resortApprovedKey:                     "{0} est maintenant référencée",
	},
}

// RegisterCatalog adds the notification messages to trans.
func RegisterCatalog(trans *core.Translators) {
	for locale, entries := range catalog {
		trans.AddCatalog(locale, entries)
	}
}
