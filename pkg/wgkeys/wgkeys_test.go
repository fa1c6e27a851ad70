package wgkeys_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossable/outpost/pkg/wgkeys"
)

// fakeToolchain counts invocations so generated keys are distinguishable,
// standing in for the real wg(8) binary in tests.
type fakeToolchain struct {
	n int
}

func (f *fakeToolchain) GenKey(context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("private-%d", f.n), nil
}

func (f *fakeToolchain) PubKey(_ context.Context, private string) (string, error) {
	return "public-for-" + private, nil
}

func (f *fakeToolchain) GenPSK(context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("psk-%d", f.n), nil
}

func TestGenerateTriple(t *testing.T) {
	triple, err := wgkeys.GenerateTriple(context.Background(), &fakeToolchain{})
	require.NoError(t, err)
	assert.NotEmpty(t, triple.Private)
	assert.NotEmpty(t, triple.Public)
	assert.NotEmpty(t, triple.Preshared)
}

func TestGeneratePairKeysDiffer(t *testing.T) {
	pair, err := wgkeys.GeneratePair(context.Background(), &fakeToolchain{})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Origin.Private)
	assert.NotEmpty(t, pair.Proxy.Private)
	assert.NotEqual(t, pair.Origin.Private, pair.Proxy.Private)
}

type failingToolchain struct{ err error }

func (f failingToolchain) GenKey(context.Context) (string, error)             { return "", f.err }
func (f failingToolchain) PubKey(context.Context, string) (string, error)    { return "", f.err }
func (f failingToolchain) GenPSK(context.Context) (string, error)            { return "", f.err }

func TestGenerateTriplePropagatesError(t *testing.T) {
	want := fmt.Errorf("boom")
	_, err := wgkeys.GenerateTriple(context.Background(), failingToolchain{err: want})
	require.Error(t, err)
}
