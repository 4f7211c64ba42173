package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/app"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/config"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/license"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/notify"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/store/memory"
)

const fingerprint = "bench-fingerprint"

func setup(b *testing.B, withRedis bool) (*app.App, string) {
	b.Helper()

	cfg := config.Default()
	cfg.StoreBackend = config.StoreBackendMemory
	cfg.ValidateRateLimit = 1e9
	cfg.ValidateRateBurst = 1e9

	opts := []app.Option{
		app.WithLogger(zap.NewNop()),
		app.WithAuditWriter(io.Discard),
		app.WithSink(notify.NewLogSink(zap.NewNop())),
	}
	if withRedis {
		mr := miniredis.RunT(b)
		opts = append(opts, app.WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
	}

	a, err := app.New(cfg, memory.New(), opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	if _, err := a.Keys.Rotate(ctx, signing.RS256, signing.MinKeySize, "bench"); err != nil {
		b.Fatal(err)
	}
	res, err := a.Licenses.Issue(ctx, license.IssueRequest{
		WorkshopCode:        "WS-BENCH",
		BusinessName:        "Bench Garage",
		ContactEmail:        "bench@example.com",
		LicenseType:         "Standard",
		HardwareFingerprint: fingerprint,
		Actor:               "bench",
	})
	if err != nil {
		b.Fatal(err)
	}
	return a, res.Token
}

func BenchmarkValidate(b *testing.B) {
	for _, tc := range []struct {
		name  string
		redis bool
	}{
		{"store", false},
		{"redis cache", true},
	} {
		b.Run(tc.name, func(b *testing.B) {
			a, tok := setup(b, tc.redis)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				res, err := a.Validator.Validate(ctx, tok, fingerprint)
				if err != nil || !res.Valid {
					b.Fatalf("validation failed: %v %+v", err, res)
				}
			}
		})
	}
}

func BenchmarkValidateEndpoint(b *testing.B) {
	a, tok := setup(b, false)
	srv := a.Server("127.0.0.1", "0", "bench-admin")
	body, _ := json.Marshal(map[string]string{"token": tok, "hardware_fingerprint": fingerprint})

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			r := httptest.NewRequest(http.MethodPost, "/tokens/validate", bytes.NewReader(body))
			w := httptest.NewRecorder()
			srv.Router.ServeHTTP(w, r)
			if w.Code != http.StatusOK {
				b.Errorf("unexpected status %d", w.Code)
			}
		}
	})
}
