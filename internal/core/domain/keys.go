package domain

import (
	"fmt"
	"strings"
	"time"
)

// keyVersion prefixa todas as chaves para permitir migrações de esquema.
const keyVersion = "guardian:v1"

// Escopos de identificador reconhecidos pelas camadas de política.
const (
	ScopeIP     = "ip"
	ScopeUser   = "user"
	ScopeOrg    = "org"
	ScopeAPIKey = "key"
)

// Identifier monta o identificador canônico "escopo:valor".
func Identifier(scope, value string) string {
	return scope + ":" + strings.ToLower(strings.TrimSpace(value))
}

// WindowIndex calcula o índice da janela corrente por divisão inteira.
// Every caller that lands inside the same bucket derives the same index,
// so processes agree on the key without coordination.
func WindowIndex(window time.Duration, now time.Time) int64 {
	return now.UnixMilli() / window.Milliseconds()
}

// WindowReset devolve o instante em que a janela corrente termina.
func WindowReset(window time.Duration, now time.Time) time.Time {
	return time.UnixMilli((WindowIndex(window, now) + 1) * window.Milliseconds())
}

// CounterKey deriva a chave do contador para (identificador, ação, janela).
func CounterKey(identifier, action string, window time.Duration, now time.Time) string {
	return fmt.Sprintf("%s:counter:%s:%s:%d", keyVersion, identifier, action, WindowIndex(window, now))
}

// CounterPrefix devolve o prefixo de todas as chaves de contador do identificador.
func CounterPrefix(identifier string) string {
	return fmt.Sprintf("%s:counter:%s:", keyVersion, identifier)
}

// SuspectKey deriva a chave do contador de velocidade usado pela quarentena.
func SuspectKey(identifier string, window time.Duration, now time.Time) string {
	return SuspectKeyAt(identifier, WindowIndex(window, now))
}

// SuspectKeyAt deriva a chave de velocidade para um índice de janela explícito.
func SuspectKeyAt(identifier string, index int64) string {
	return fmt.Sprintf("%s:suspect:%s:%d", keyVersion, identifier, index)
}

// SuspectPrefix devolve o prefixo de todas as chaves de velocidade do identificador.
func SuspectPrefix(identifier string) string {
	return fmt.Sprintf("%s:suspect:%s:", keyVersion, identifier)
}

// BlockKey deriva a chave do registro de bloqueio do identificador.
func BlockKey(identifier string) string {
	return fmt.Sprintf("%s:block:%s", keyVersion, identifier)
}
