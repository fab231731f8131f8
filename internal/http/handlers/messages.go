package handlers

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"studio/internal/middleware"
)

const (
	msgAccepted        = "order.accepted"
	msgPending         = "order.pending"
	msgProcessing      = "order.processing"
	msgCompleted       = "order.completed"
	msgFailed          = "order.failed"
	msgBadRequest      = "error.bad_request"
	msgPolicyViolation = "error.policy_violation"
	msgQuotaExceeded   = "error.quota_exceeded"
	msgNotFound        = "error.not_found"
	msgForbidden       = "error.forbidden"
	msgInternal        = "error.internal"
)

var messages = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, entries map[string]string) {
		for key, msg := range entries {
			_ = b.SetString(tag, key, msg)
		}
	}
	set(language.English, map[string]string{
		msgAccepted:        "Your order was received. Check its status to follow progress.",
		msgPending:         "Your video is waiting in the queue.",
		msgProcessing:      "Your video is being generated.",
		msgCompleted:       "Your video is ready.",
		msgFailed:          "Video generation failed: %s",
		msgBadRequest:      "The request body is invalid.",
		msgPolicyViolation: "The request is not allowed for this plan.",
		msgQuotaExceeded:   "The daily order limit for this plan has been reached.",
		msgNotFound:        "Order not found.",
		msgForbidden:       "Access denied.",
		msgInternal:        "Something went wrong. Please try again later.",
	})
	set(language.Indonesian, map[string]string{
		msgAccepted:        "Pesanan Anda diterima. Cek status untuk memantau progres.",
		msgPending:         "Video Anda sedang menunggu antrean.",
		msgProcessing:      "Video Anda sedang dibuat.",
		msgCompleted:       "Video Anda sudah siap.",
		msgFailed:          "Pembuatan video gagal: %s",
		msgBadRequest:      "Isi permintaan tidak valid.",
		msgPolicyViolation: "Permintaan tidak diizinkan untuk paket ini.",
		msgQuotaExceeded:   "Batas pesanan harian untuk paket ini sudah tercapai.",
		msgNotFound:        "Pesanan tidak ditemukan.",
		msgForbidden:       "Akses ditolak.",
		msgInternal:        "Terjadi kesalahan. Silakan coba lagi nanti.",
	})
	return b
}

func printer(r *http.Request) *message.Printer {
	tag := language.English
	if locale := middleware.LocaleFromContext(r.Context()); locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			tag = parsed
		}
	}
	return message.NewPrinter(tag, message.Catalog(messages))
}
