package ice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentRejectsInvalidPortRange(t *testing.T) {
	_, err := NewAgent(Config{PortMin: 5000, PortMax: 4000})
	require.ErrorIs(t, err, ErrPortRange)
}

func TestGatherHostCandidatesOnLoopback(t *testing.T) {
	a, err := NewAgent(Config{BindIP: loopbackIP()})
	require.NoError(t, err)
	defer a.Close()

	a.WaitGatheringComplete()
	assert.Equal(t, GatheringStateComplete, a.GatheringState())

	candidates := a.LocalCandidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, CandidateTypeHost, candidates[0].Type)
	assert.NotZero(t, candidates[0].Port)
}

func TestLocalCredentialsAreNonEmptyAndDistinctPerAgent(t *testing.T) {
	a, err := NewAgent(Config{BindIP: loopbackIP()})
	require.NoError(t, err)
	defer a.Close()

	b, err := NewAgent(Config{BindIP: loopbackIP()})
	require.NoError(t, err)
	defer b.Close()

	ufragA, pwdA := a.LocalCredentials()
	ufragB, pwdB := b.LocalCredentials()
	assert.NotEmpty(t, ufragA)
	assert.NotEmpty(t, pwdA)
	assert.NotEqual(t, ufragA, ufragB)
	assert.NotEqual(t, pwdA, pwdB)
}

func TestPingBetweenTwoAgentsCompletesBindingExchange(t *testing.T) {
	a, err := NewAgent(Config{BindIP: loopbackIP()})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewAgent(Config{BindIP: loopbackIP(), EnableLatching: true})
	require.NoError(t, err)
	defer b.Close()

	a.WaitGatheringComplete()
	b.WaitGatheringComplete()

	aUfrag, aPwd := a.LocalCredentials()
	bUfrag, bPwd := b.LocalCredentials()
	a.SetRemoteCredentials(bUfrag, bPwd)
	b.SetRemoteCredentials(aUfrag, aPwd)

	bCandidate := b.LocalCandidates()[0]
	a.Ping(bCandidate.Addr())

	require.Eventually(t, func() bool {
		return b.Conns()[0].RemoteAddr().String() == a.LocalCandidates()[0].Addr().String()
	}, time.Second, 10*time.Millisecond)
}

func TestClosedAgentReadLoopsExitCleanly(t *testing.T) {
	a, err := NewAgent(Config{BindIP: loopbackIP()})
	require.NoError(t, err)
	a.WaitGatheringComplete()
	require.NoError(t, a.Close())
	// A second Close must not panic or block.
	require.NoError(t, a.Close())
}

func loopbackIP() []byte { return []byte{127, 0, 0, 1} }
