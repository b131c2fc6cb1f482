package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter serves the JSON API and the emitted invoice documents found in
// invoiceDir.
func NewRouter(svc AppointmentsService, invoiceDir string, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{
		svc:        svc,
		invoiceDir: invoiceDir,
		log:        log.With(slog.String("component", "http")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/slots", h.slotGrid)
	r.Get("/locations", h.listLocations)
	r.Route("/locations/{locationID}", func(r chi.Router) {
		r.Get("/services", h.listServices)
		r.Get("/staff", h.listStaff)
		r.Post("/staff", h.addStaff)
		r.Put("/staff/{name}", h.setStaffActive)
		r.Get("/availability", h.availableStaff)
		r.Get("/appointments", h.listAppointments)
	})
	r.Post("/appointments", h.createAppointment)
	r.Route("/appointments/{id}", func(r chi.Router) {
		r.Get("/", h.getAppointment)
		r.Put("/", h.updateAppointment)
		r.Delete("/", h.cancelAppointment)
		r.Post("/attend", h.attendAppointment)
	})
	r.Get("/invoices/{name}", h.downloadInvoice)

	return otelhttp.NewHandler(r, "salon-http")
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
