package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/pkg/tracing"
)

func TestInit_DeshabilitadoEsNoop(t *testing.T) {
	shutdown, err := tracing.Init(tracing.Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_ConJaeger(t *testing.T) {
	// el exportador no conecta hasta exportar; Init no requiere un collector vivo
	shutdown, err := tracing.Init(tracing.Config{
		Enabled:        true,
		ServiceName:    "inventario-reservas-test",
		JaegerEndpoint: "http://127.0.0.1:1/api/traces",
		SampleRatio:    0.5,
	})
	require.NoError(t, err)
	_ = shutdown(context.Background())
}
