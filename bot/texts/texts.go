// Package texts holds the user-facing message content of the bot. Handlers
// and services format through these helpers so the wording lives in one place.
package texts

import (
	"fmt"
	"strings"
	"time"
)

// Plan display data used across menus and notifications.
const (
	PlanWeekLabel   = "1 Semaine"
	PlanMonthLabel  = "1 Mois"
	PlanWeekPrice   = "1000f"
	PlanMonthPrice  = "3000f"
	PaymentNumber   = "+2250710825422"
	SupportUsername = "@telefoot_support"
)

// ReactivationAck is the reply sent when a reactivation instruction arrives
// over the message channel.
const ReactivationAck = "ok"

func Welcome(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "ami"
	}
	return fmt.Sprintf(
		"👋 Bienvenue %s !\n\n"+
			"⚽ TeleFoot — pronostics football premium.\n\n"+
			"📌 Commandes :\n"+
			"/status — votre abonnement\n"+
			"/payer — acheter un abonnement\n"+
			"/pronostics — pronostics du jour\n"+
			"/help — aide",
		name,
	)
}

func Help(isAdmin bool) string {
	var b strings.Builder
	b.WriteString(
		"ℹ️ Aide TeleFoot\n\n" +
			"/start — démarrer le bot\n" +
			"/status — état de votre licence\n" +
			"/payer — choisir un abonnement\n" +
			"/pronostics — pronostics du jour\n" +
			"/menu — menu principal\n",
	)
	if isAdmin {
		b.WriteString(
			"\n🔑 Admin :\n" +
				"/activer <id> <plan> — activer une licence\n" +
				"/connect <numéro> — lier un compte\n" +
				"/reconnect — relancer la session principale\n" +
				"/clean <numéro> — supprimer une session\n" +
				"/test — état des sessions\n" +
				"/config — configuration du bot\n" +
				"/guide — guide d'utilisation\n" +
				"/delay — réglages de délai\n" +
				"/settings — paramètres\n",
		)
	}
	b.WriteString("\nSupport : " + SupportUsername)
	return b.String()
}

func Tariffs() string {
	return fmt.Sprintf(
		"💳 Abonnements TeleFoot\n\n"+
			"• %s — %s\n"+
			"• %s — %s\n\n"+
			"Choisissez une offre ci-dessous 👇",
		PlanWeekLabel, PlanWeekPrice, PlanMonthLabel, PlanMonthPrice,
	)
}

// PlanLabel maps a plan identifier to its display label.
func PlanLabel(plan string) string {
	switch plan {
	case "semaine":
		return PlanWeekLabel
	case "mois":
		return PlanMonthLabel
	}
	return plan
}

func PaymentRequested(planLabel, price string) string {
	return fmt.Sprintf(
		"🕐 Demande enregistrée : %s (%s).\n\n"+
			"Envoyez le paiement au %s puis patientez, "+
			"votre licence sera activée par l'administrateur.",
		planLabel, price, PaymentNumber,
	)
}

func PaymentAlreadyPending() string {
	return "🕐 Une demande est déjà en attente pour cette offre."
}

func PaymentCancelled() string {
	return "❌ Demande de paiement annulée."
}

func AdminPaymentRequest(userID int64, plan, price string) string {
	return fmt.Sprintf(
		"💰 Nouvelle demande de paiement\n\n"+
			"Utilisateur : %d\n"+
			"Offre : %s (%s)\n\n"+
			"Activer : /activer %d %s",
		userID, PlanLabel(plan), price, userID, plan,
	)
}

func Activated(planLabel, key string, expires time.Time) string {
	return fmt.Sprintf(
		"✅ Licence activée !\n\n"+
			"Offre : %s\n"+
			"Clé : %s\n"+
			"Expire : %s",
		planLabel, key, expires.Format("02/01/2006 15:04"),
	)
}

func AdminActivated(userID int64, planLabel string, expires time.Time) string {
	return fmt.Sprintf(
		"✅ Licence de %d activée (%s), expire le %s.",
		userID, planLabel, expires.Format("02/01/2006 15:04"),
	)
}

func StatusActive(planLabel string, expires time.Time) string {
	return fmt.Sprintf(
		"✅ Abonnement actif\n\nOffre : %s\nExpire : %s",
		planLabel, expires.Format("02/01/2006 15:04"),
	)
}

func StatusExpired() string {
	return "⌛ Votre abonnement a expiré.\n\nUtilisez /payer pour le renouveler."
}

func StatusPaymentRequested(planLabel string) string {
	return fmt.Sprintf(
		"🕐 Demande en attente : %s.\n\nL'administrateur activera votre licence après paiement.",
		planLabel,
	)
}

func StatusInactive() string {
	return "ℹ️ Aucun abonnement actif.\n\nUtilisez /payer pour en acheter un."
}

// AdminUserStatus is the admin-facing view of another user's record.
func AdminUserStatus(userID int64, status, planLabel, key string, expires *time.Time) string {
	exp := "—"
	if expires != nil {
		exp = expires.Format("02/01/2006 15:04")
	}
	if key == "" {
		key = "—"
	}
	return fmt.Sprintf(
		"👤 Utilisateur %d\n\nStatut : %s\nOffre : %s\nClé : %s\nExpire : %s",
		userID, status, planLabel, key, exp,
	)
}

func AdminUserUnknown(userID int64) string {
	return fmt.Sprintf("❓ Utilisateur %d inconnu.", userID)
}

func Pronostics(day time.Time) string {
	return fmt.Sprintf(
		"⚽ Pronostics du %s\n\n"+
			"🏆 Ligue 1 : PSG vs OM — 1X\n"+
			"🏆 Premier League : Arsenal vs Chelsea — Over 2.5\n"+
			"🏆 Liga : Real Madrid vs Betis — 1\n\n"+
			"Bonne chance ! 🍀",
		day.Format("02/01/2006"),
	)
}

func AccessDenied() string {
	return "🔒 Accès réservé aux abonnés.\n\nUtilisez /payer pour activer votre licence."
}

func Guide() string {
	return "📖 Guide TeleFoot\n\n" +
		"1. /connect <numéro> — lier un compte Telegram\n" +
		"2. Saisir le code reçu (précédé de aa, ex: aa12345)\n" +
		"3. /test — vérifier les sessions\n" +
		"4. /reconnect — relancer la session principale\n" +
		"5. /clean <numéro> — retirer une session"
}

func DelaySettings() string {
	return "⏱ Délais de redirection\n\n" +
		"Délai par défaut : 0s (transfert immédiat).\n" +
		"Configuration avancée à venir."
}

func Settings() string {
	return "⚙️ Paramètres\n\n" +
		"Transformation : désactivée\n" +
		"Filtres : aucun\n" +
		"Configuration avancée à venir."
}

func ConnectPrompt(phone string) string {
	return fmt.Sprintf(
		"📲 Connexion de %s...\n\n"+
			"Envoyez le code reçu précédé de aa (exemple : aa12345).",
		phone,
	)
}

func ConnectDone(phone string) string {
	return fmt.Sprintf("✅ Session %s connectée et sauvegardée.", phone)
}

func SessionCleaned(phone string) string {
	return fmt.Sprintf("🗑 Session %s supprimée.", phone)
}

func ReactivationDone(restored, failed int, total int64) string {
	return fmt.Sprintf(
		"🔄 Réactivation terminée : %d session(s) restaurée(s), %d échec(s).\nRéactivations depuis le démarrage : %d.",
		restored, failed, total,
	)
}

func InvalidPhone(raw string) string {
	return fmt.Sprintf("❌ Numéro invalide : %s", raw)
}

func UsageActiver() string {
	return "Usage : /activer <id> <semaine|mois>"
}

func UsageStatus() string {
	return "Usage : /status [id]"
}

func UsageConnect() string {
	return "Usage : /connect <numéro>"
}

func UsageClean() string {
	return "Usage : /clean <numéro>"
}

func UnknownPlan(raw string) string {
	return fmt.Sprintf("❌ Offre inconnue : %s (semaine ou mois)", raw)
}
