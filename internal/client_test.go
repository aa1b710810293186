package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppKeyLabelIdentifiesInstance(t *testing.T) {
	app := &ActiveApp{AppID: 42, Name: "nfm"}
	key := appKey("localhost:8686", app)
	require.Equal(t, "nfm @ localhost:8686", appKeyLabel(key))
}

func TestAppKeysDistinguishInstancesAcrossHosts(t *testing.T) {
	app := &ActiveApp{AppID: 42, Name: "nfm"}
	require.NotEqual(t, appKey("hosta:8686", app), appKey("hostb:8686", app))

	other := &ActiveApp{AppID: 43, Name: "nfm"}
	require.NotEqual(t, appKey("hosta:8686", app), appKey("hosta:8686", other))
}
