package notification

import "strings"

type template struct {
	Subject string
	Message string
}

// Landlord-facing message templates per locale. Unknown locales and
// unknown template names fall back to English.
var templates = map[string]map[string]template{
	"en": {
		TemplatePaymentInitiated: {
			Subject: "Payment Initiated - Action Required",
			Message: "Dear Landlord, your payment for property {property_id} has been initiated. Please complete the payment using the link: {payment_link}",
		},
		TemplatePaymentSuccess: {
			Subject: "Payment Successful!",
			Message: "Dear Landlord, your payment for property {property_id} was successful. Your listing is now approved.",
		},
		TemplatePaymentFailed: {
			Subject: "Payment Failed - Action Required",
			Message: "Dear Landlord, your payment for property {property_id} has failed. Please try again.",
		},
		TemplatePaymentTimedOut: {
			Subject: "Payment Timed Out - Action Required",
			Message: "Dear Landlord, your pending payment for property {property_id} has timed out and failed. Please try again.",
		},
	},
	"am": {
		TemplatePaymentInitiated: {
			Subject: "ክፍያ ተጀምሯል - እርምጃ ያስፈልጋል",
			Message: "ውድ የቤት ባለቤት፣ ለንብረትዎ {property_id} ክፍያ ተጀምሯል። እባክዎ ክፍያውን በዚህ ሊንክ ያጠናቅቁ፡ {payment_link}",
		},
		TemplatePaymentSuccess: {
			Subject: "ክፍያ ተሳክቷል!",
			Message: "ውድ የቤት ባለቤት፣ ለንብረትዎ {property_id} ክፍያ በተሳካ ሁኔታ ተጠናቋል። ማስታወቂያዎ አሁን ጸድቋል።",
		},
		TemplatePaymentFailed: {
			Subject: "ክፍያ አልተሳካም - እርምጃ ያስፈልጋል",
			Message: "ውድ የቤት ባለቤት፣ ለንብረትዎ {property_id} ክፍያ አልተሳካም። እባክዎ እንደገና ይሞክሩ።",
		},
		TemplatePaymentTimedOut: {
			Subject: "ክፍያ ጊዜው አልፏል - እርምጃ ያስፈልጋል",
			Message: "ውድ የቤት ባለቤት፣ ለንብረትዎ {property_id} በመጠባበቅ ላይ የነበረው ክፍያ ጊዜው አልፏል እና አልተሳካም። እባክዎ እንደገና ይሞክሩ።",
		},
	},
	"om": {
		TemplatePaymentInitiated: {
			Subject: "Kaffaltiin Jalqabameera - Tarkaanfii Barbaachisaadha",
			Message: "Jiraataa kabajamaa, kaffaltiin keessan kan qabeenya {property_id} jalqabameera. Maaloo kaffaltii linkii kanaan xumuraa: {payment_link}",
		},
		TemplatePaymentSuccess: {
			Subject: "Kaffaltiin Milkaa'eera!",
			Message: "Jiraataa kabajamaa, kaffaltiin keessan kan qabeenya {property_id} milkaa'eera. Galmeen keessan amma mirkanaa'eera.",
		},
		TemplatePaymentFailed: {
			Subject: "Kaffaltiin Milkaa'uu Dide - Tarkaanfii Barbaachisaadha",
			Message: "Jiraataa kabajamaa, kaffaltiin keessan kan qabeenya {property_id} milkaa'uu dideera. Maaloo deebisanii yaalaa.",
		},
		TemplatePaymentTimedOut: {
			Subject: "Kaffaltiin Yeroo Isaa Darbe - Tarkaanfii Barbaachisaadha",
			Message: "Jiraataa kabajamaa, kaffaltiin keessan kan qabeenya {property_id} yeroo isaa darbeera. Maaloo deebisanii yaalaa.",
		},
	},
}

func renderTemplate(locale, name string, vars map[string]string) (subject, message string) {
	localeTemplates, ok := templates[locale]
	if !ok {
		localeTemplates = templates["en"]
	}
	tmpl, ok := localeTemplates[name]
	if !ok {
		tmpl = templates["en"][name]
	}

	message = tmpl.Message
	for key, value := range vars {
		message = strings.ReplaceAll(message, "{"+key+"}", value)
	}
	return tmpl.Subject, message
}
