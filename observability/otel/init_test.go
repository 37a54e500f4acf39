package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer x ,, =skip,novalue, tenant=solation")
	require.Equal(t, map[string]string{
		"authorization": "Bearer x",
		"tenant":        "solation",
	}, got)
}

func TestInitValidates(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	_, err = Init(context.Background(), Config{ServiceName: "solationd", SampleRatio: 2})
	require.Error(t, err)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "solationd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
