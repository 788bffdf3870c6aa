package verify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/document"
)

type stubVerifier struct {
	name       string
	applicable bool
	fragment   Fragment
	err        error
	calls      atomic.Int32
}

func (s *stubVerifier) Name() string { return s.name }

func (s *stubVerifier) Test(*document.Document) bool { return s.applicable }

func (s *stubVerifier) Skip(*document.Document) Fragment {
	return Fragment{Name: s.name, Type: s.fragment.Type, Status: StatusSkipped}
}

func (s *stubVerifier) Verify(context.Context, *document.Document) (Fragment, error) {
	s.calls.Add(1)
	return s.fragment, s.err
}

func TestEnginePreservesRegistrationOrder(t *testing.T) {
	first := &stubVerifier{name: "first", applicable: true, fragment: Fragment{Name: "first", Status: StatusValid}}
	second := &stubVerifier{name: "second", applicable: true, fragment: Fragment{Name: "second", Status: StatusInvalid}}
	engine := NewEngine(zap.NewNop(), first, second)

	fragments, err := engine.Verify(context.Background(), &document.Document{})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, "first", fragments[0].Name)
	assert.Equal(t, "second", fragments[1].Name)
	assert.Equal(t, StatusInvalid, fragments[1].Status)
}

func TestEngineSkipsWithoutInvokingVerify(t *testing.T) {
	skipped := &stubVerifier{name: "skipped", applicable: false}
	active := &stubVerifier{name: "active", applicable: true, fragment: Fragment{Name: "active", Status: StatusValid}}
	engine := NewEngine(zap.NewNop(), skipped, active)

	fragments, err := engine.Verify(context.Background(), &document.Document{})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, StatusSkipped, fragments[0].Status)
	assert.Equal(t, int32(0), skipped.calls.Load())
	assert.Equal(t, int32(1), active.calls.Load())
}

func TestEngineFatalErrorFailsWholeCall(t *testing.T) {
	broken := &stubVerifier{name: "broken", applicable: true, err: ErrMalformedDocument}
	fine := &stubVerifier{name: "fine", applicable: true, fragment: Fragment{Name: "fine", Status: StatusValid}}
	engine := NewEngine(zap.NewNop(), broken, fine)

	fragments, err := engine.Verify(context.Background(), &document.Document{})
	require.ErrorIs(t, err, ErrMalformedDocument)
	assert.Nil(t, fragments)
}

func TestEngineInvalidDoesNotShortCircuitOthers(t *testing.T) {
	invalid := &stubVerifier{name: "invalid", applicable: true, fragment: Fragment{Name: "invalid", Status: StatusInvalid, Reason: "not issued"}}
	valid := &stubVerifier{name: "valid", applicable: true, fragment: Fragment{Name: "valid", Status: StatusValid}}
	engine := NewEngine(zap.NewNop(), invalid, valid)

	fragments, err := engine.Verify(context.Background(), &document.Document{})
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, fragments[0].Status)
	assert.Equal(t, StatusValid, fragments[1].Status)
	assert.Equal(t, int32(1), valid.calls.Load())
}

func TestEngineVerifierErrorIsNotMalformedSentinelOnly(t *testing.T) {
	boom := errors.New("resolver exploded")
	broken := &stubVerifier{name: "broken", applicable: true, err: boom}
	engine := NewEngine(zap.NewNop(), broken)

	_, err := engine.Verify(context.Background(), &document.Document{})
	require.ErrorIs(t, err, boom)
}
