package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	gotIn  *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.gotIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: valueOut(`{"token":"v"}`)}
	client, err := New(api, "/worldbuilder")
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), "oracle-token")
	require.NoError(t, err)
	require.Equal(t, `{"token":"v"}`, v)
	require.Equal(t, "/worldbuilder/oracle-token", *api.gotIn.Name)
	require.True(t, *api.gotIn.WithDecryption)
}

func TestResolve(t *testing.T) {
	c, err := New(&fakeAPI{}, "/worldbuilder/")
	require.NoError(t, err)
	require.Equal(t, "/worldbuilder/oracle/selector_model", c.Resolve("oracle/selector_model"))
	require.Equal(t, "/other/key", c.Resolve("/other/key"))
	require.Equal(t, "", c.Resolve("  "))

	bare, err := New(&fakeAPI{}, "")
	require.NoError(t, err)
	require.Equal(t, "key", bare.Resolve("key"))
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api, "")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("boom")}, "")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestGetParameter_NotFound(t *testing.T) {
	client, err := New(&fakeAPI{getErr: &types.ParameterNotFound{Message: strPtr("nope")}}, "/wb")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorContains(t, err, "/wb/missing")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{}, "")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "/wb")
	require.ErrorContains(t, err, "must not be nil")
}

func TestStatic(t *testing.T) {
	s := Static{"oracle-token": "k"}
	v, err := s.GetParameter(context.Background(), "oracle-token")
	require.NoError(t, err)
	require.Equal(t, "k", v)

	_, err = s.GetParameter(context.Background(), "other")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetParameter(context.Background(), "")
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	v, ok, err := Lookup(ctx, Static{"a": " 1 "}, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	_, ok, err = Lookup(ctx, Static{}, "a")
	require.NoError(t, err)
	require.False(t, ok)

	client, err := New(&fakeAPI{getErr: errors.New("throttled")}, "")
	require.NoError(t, err)
	_, _, err = Lookup(ctx, client, "a")
	require.ErrorContains(t, err, "throttled")
}
