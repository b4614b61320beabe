package session

import (
	"fmt"
	"math"
	"time"
)

// Sentinel ends a session gracefully.
const Sentinel = "BYE"

func welcomeMessage(name string) string {
	return fmt.Sprintf("Hola %s\n", name)
}

func farewellMessage(name string) string {
	return fmt.Sprintf("Adiós %s\n", name)
}

func replyMessage(body string, count int) string {
	return fmt.Sprintf("%s\nMensajes enviados por ti: %d\n", body, count)
}

func blockedMessage(secondsRemaining int) string {
	return fmt.Sprintf("Estás bloqueado. Tiempo restante: %d segundos.\n", secondsRemaining)
}

func limitReachedMessage(lockout time.Duration) string {
	return fmt.Sprintf(
		"Has alcanzado el límite de mensajes. Estás temporalmente bloqueado por %d segundos.\n",
		int(math.Ceil(lockout.Seconds())),
	)
}
