// Package http serves the dashboard: the public payment board, the
// admin panel behind the password gate, and the HTMX fragments both
// are assembled from.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"cassa/internal/core"
)

// HTMXResponseBuilder accumulates HX-Trigger events, headers, and a body,
// then writes them in one shot. Handlers return early with a prepared
// builder instead of juggling header ordering by hand.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a builder with a default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named client event with optional payload to HX-Trigger.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerMemberCreated fires member:created so member lists refresh.
func (b *HTMXResponseBuilder) TriggerMemberCreated(memberID int64) *HTMXResponseBuilder {
	return b.Trigger("member:created", map[string]int64{"id": memberID})
}

// TriggerMemberUpdated fires member:updated so member lists refresh.
func (b *HTMXResponseBuilder) TriggerMemberUpdated(memberID int64) *HTMXResponseBuilder {
	return b.Trigger("member:updated", map[string]int64{"id": memberID})
}

// TriggerMemberDeleted fires member:deleted so member lists refresh.
func (b *HTMXResponseBuilder) TriggerMemberDeleted(memberID int64) *HTMXResponseBuilder {
	return b.Trigger("member:deleted", map[string]int64{"id": memberID})
}

// TriggerPaymentUpdated fires payment:updated with the touched period so
// summary and trend fragments reload.
func (b *HTMXResponseBuilder) TriggerPaymentUpdated(memberID int64, p core.Period) *HTMXResponseBuilder {
	return b.Trigger("payment:updated", map[string]int64{
		"member_id": memberID,
		"month":     int64(p.Month),
		"year":      int64(p.Year),
	})
}

// TriggerFormReset fires form:reset so the submitting form clears itself.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

// NotificationType selects the toast style shown by the frontend.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification fires show-notification with the given parameters.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationWarning, message, 4000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyHTML sets an HTML body and the matching content type.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response. Triggers are JSON-encoded into a
// single HX-Trigger header.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse builds an HTML-escaped error div with the given status.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escaped := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escaped + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
