package transport

import (
	"context"
	"testing"
	"time"

	"github.com/nrigby/lsmkv/pkg/auth"
	"github.com/nrigby/lsmkv/pkg/logging"
	"github.com/nrigby/lsmkv/pkg/lsm"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) *lsm.LSMTree {
	t.Helper()
	opts := lsm.DefaultOptions(t.TempDir())
	opts.Logger = logging.NopLogger{}
	tree, err := lsm.NewLSMTree(opts)
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })
	return tree
}

func startTestServer(t *testing.T, authOpts AuthOptions) (*Server, *Client) {
	t.Helper()
	tree := newTestTree(t)
	factory := newPairedFactory()

	srv, err := NewServer(tree, factory, "inproc://test", authOpts, nil, logging.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	go srv.Serve(ctx)

	client, err := NewClient(factory, "inproc://test", authOpts.Enabled)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return srv, client
}

func TestServerPutGet(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	resp, err := client.Send("p 10 20")
	require.NoError(t, err)
	require.Equal(t, respOK, resp)

	resp, err = client.Send("g 10")
	require.NoError(t, err)
	require.Equal(t, "Get: Key = 10, Value = 20", resp)
}

func TestServerGetNotFound(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	resp, err := client.Send("g 999")
	require.NoError(t, err)
	require.Equal(t, "Get: Key = 999, not found", resp)
}

func TestServerRange(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	_, err := client.Send("p 1 100")
	require.NoError(t, err)
	_, err = client.Send("p 2 200")
	require.NoError(t, err)

	resp, err := client.Send("r 1 3")
	require.NoError(t, err)
	require.Equal(t, "Range: 1:100 2:200", resp)
}

func TestServerRangeBadArgument(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	resp, err := client.Send("r 100 1")
	require.NoError(t, err)
	require.Contains(t, resp, respErr)
}

func TestServerDelete(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	_, err := client.Send("p 5 50")
	require.NoError(t, err)
	_, err = client.Send("d 5")
	require.NoError(t, err)

	resp, err := client.Send("g 5")
	require.NoError(t, err)
	require.Equal(t, "Get: Key = 5, not found", resp)
}

func TestServerStats(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	_, err := client.Send("p 1 10")
	require.NoError(t, err)

	resp, err := client.Send("s")
	require.NoError(t, err)
	require.Contains(t, resp, "Logical Pairs: 1")
}

func TestServerMalformedCommand(t *testing.T) {
	_, client := startTestServer(t, AuthOptions{})

	resp, err := client.Send("p 1")
	require.NoError(t, err)
	require.Contains(t, resp, respErr)
}

func TestServerAuthRequiredRejectsUnauthenticated(t *testing.T) {
	jwtMgr, err := auth.NewJWTManager("this-is-a-32-byte-signing-secret!!", time.Minute)
	require.NoError(t, err)
	hash, err := auth.HashSecret("correct-horse-battery-staple")
	require.NoError(t, err)

	_, client := startTestServer(t, AuthOptions{Enabled: true, SecretHash: hash, JWTManager: jwtMgr})

	resp, err := client.Send("p 1 2")
	require.NoError(t, err)
	require.Contains(t, resp, respErr)
}

func TestServerAuthHandshakeThenCommand(t *testing.T) {
	jwtMgr, err := auth.NewJWTManager("this-is-a-32-byte-signing-secret!!", time.Minute)
	require.NoError(t, err)
	hash, err := auth.HashSecret("correct-horse-battery-staple")
	require.NoError(t, err)

	_, client := startTestServer(t, AuthOptions{Enabled: true, SecretHash: hash, JWTManager: jwtMgr})

	err = client.Authenticate("test-client", "correct-horse-battery-staple")
	require.NoError(t, err)

	resp, err := client.Send("p 1 2")
	require.NoError(t, err)
	require.Equal(t, respOK, resp)
}

func TestServerAuthCompositeValidatorAcceptsRawSharedSecret(t *testing.T) {
	jwtMgr, err := auth.NewJWTManager("this-is-a-32-byte-signing-secret!!", time.Minute)
	require.NoError(t, err)
	hash, err := auth.HashSecret("correct-horse-battery-staple")
	require.NoError(t, err)
	validator := auth.NewCompositeTokenValidator(jwtMgr, auth.NewSharedSecretValidator(hash))

	_, client := startTestServer(t, AuthOptions{Enabled: true, SecretHash: hash, JWTManager: jwtMgr, Validator: validator})

	client.token = "correct-horse-battery-staple"
	resp, err := client.Send("p 1 2")
	require.NoError(t, err)
	require.Equal(t, respOK, resp)
}

func TestServerAuthCompositeValidatorRejectsWrongSecretAsToken(t *testing.T) {
	jwtMgr, err := auth.NewJWTManager("this-is-a-32-byte-signing-secret!!", time.Minute)
	require.NoError(t, err)
	hash, err := auth.HashSecret("correct-horse-battery-staple")
	require.NoError(t, err)
	validator := auth.NewCompositeTokenValidator(jwtMgr, auth.NewSharedSecretValidator(hash))

	_, client := startTestServer(t, AuthOptions{Enabled: true, SecretHash: hash, JWTManager: jwtMgr, Validator: validator})

	client.token = "not-the-secret"
	resp, err := client.Send("p 1 2")
	require.NoError(t, err)
	require.Contains(t, resp, respErr)
}

func TestServerAuthWrongSecretRejected(t *testing.T) {
	jwtMgr, err := auth.NewJWTManager("this-is-a-32-byte-signing-secret!!", time.Minute)
	require.NoError(t, err)
	hash, err := auth.HashSecret("correct-horse-battery-staple")
	require.NoError(t, err)

	_, client := startTestServer(t, AuthOptions{Enabled: true, SecretHash: hash, JWTManager: jwtMgr})

	err = client.Authenticate("test-client", "wrong-secret")
	require.Error(t, err)
}
