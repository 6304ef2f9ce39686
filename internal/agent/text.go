package agent

import "github.com/chris/dayplan/internal/prompt"

// text holds the answers the agent writes itself instead of the model.
type text struct {
	fallback string
	refusal  string
	empty    string
	timeout  string
}

var (
	englishText = text{
		fallback: "I wasn't able to complete this request within the allowed number of steps. Could you try again, maybe splitting it into smaller requests?",
		refusal:  "I can't do that: the request touched data that doesn't belong to your account, so I stopped.",
		empty:    "I don't have an answer for that. Could you rephrase it?",
		timeout:  "This is taking too long, so I stopped. Please try again.",
	}
	spanishText = text{
		fallback: "No he podido completar esta petición dentro del número de pasos permitido. ¿Puedes intentarlo de nuevo, quizá dividiéndola en peticiones más pequeñas?",
		refusal:  "No puedo hacer eso: la petición afectaba a datos que no pertenecen a tu cuenta, así que me he detenido.",
		empty:    "No tengo una respuesta para eso. ¿Puedes reformularlo?",
		timeout:  "Esto está tardando demasiado, así que me he detenido. Inténtalo de nuevo.",
	}
)

func textFor(language string) text {
	if prompt.IsEnglish(language) {
		return englishText
	}
	return spanishText
}
