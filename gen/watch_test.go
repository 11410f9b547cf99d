package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "models")
	cfgPath := filepath.Join(dir, ".recordgen.yml")
	writeCfg := func(model string) {
		t.Helper()
		require.NoError(t, os.WriteFile(cfgPath, []byte(`
package: models
out: `+out+`
models:
  - name: `+model+`
    fields:
      - name: email
        type: string
`), 0o644))
	}
	writeCfg("user")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, cfgPath, nil) }()

	exists := func(name string) func() bool {
		path := filepath.Join(out, name)
		return func() bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}

	// The initial run generates without any event.
	require.Eventually(t, exists("user.go"), 5*time.Second, 10*time.Millisecond)

	// A config change triggers a regeneration.
	writeCfg("invoice")
	require.Eventually(t, exists("invoice.go"), 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
