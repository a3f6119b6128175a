package echoapi

import "github.com/trezcool/slopeside/core"

const (
	msgPasswordResetSent   = "api.password_reset.sent"
	msgPasswordResetDone   = "api.password_reset.done"
	msgInvitationDeclined  = "api.invitation.declined"
	msgInvitationRevoked   = "api.invitation.revoked"
	msgLeftSchool          = "api.school.left"
	msgResortRequestQueued = "api.resort_request.queued"
)

var messages = map[string]map[string]string{
	core.LocaleEN: {
		msgPasswordResetSent:   "If the email address supplied is associated with an active account on this system, an email will arrive in your inbox shortly with instructions to reset your password.",
		msgPasswordResetDone:   "Password has been reset with the new password.",
		msgInvitationDeclined:  "Invitation declined.",
		msgInvitationRevoked:   "Invitation revoked.",
		msgLeftSchool:          "You left your school.",
		msgResortRequestQueued: "Thanks! Your resort request will be reviewed by our team.",
	},
	core.LocaleFR: {
		msgPasswordResetSent:   "Si l'adresse e-mail fournie est associée à un compte actif, vous recevrez sous peu un e-mail contenant les instructions pour réinitialiser votre mot de passe.",
		msgPasswordResetDone:   "Votre mot de passe a été réinitialisé.",
		msgInvitationDeclined:  "Invitation refusée.",
		msgInvitationRevoked:   "Invitation révoquée.",
		msgLeftSchool:          "Vous avez quitté votre école.",
		msgResortRequestQueued: "Merci ! Votre demande de station sera examinée par notre équipe.",
	},
}

func registerMessages(trans *core.Translators) {
	for locale, entries := range messages {
		trans.AddCatalog(locale, entries)
	}
}
