package zkproof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mockProof() *Proof {
	return &Proof{
		PiA: [3]string{"1", "2", "3"},
		PiB: [3][2]string{
			{"4", "5"},
			{"6", "7"},
			{"8", "9"},
		},
		PiC:      [3]string{"10", "11", "12"},
		Protocol: "groth16",
	}
}

func TestFormatForContract(t *testing.T) {
	signals := []string{"1", "2", "3", "4", "5", "6", "7", "8"}

	cp, err := FormatForContract(mockProof(), signals)
	require.NoError(t, err)

	// projective coordinate dropped, inner pairs swapped
	require.Equal(t, [2]string{"1", "2"}, cp.PA)
	require.Equal(t, [2][2]string{{"5", "4"}, {"7", "6"}}, cp.PB)
	require.Equal(t, [2]string{"10", "11"}, cp.PC)
	require.Equal(t, [8]string{"1", "2", "3", "4", "5", "6", "7", "8"}, cp.PubSignals)
}

func TestFormatForContractSignalCount(t *testing.T) {
	_, err := FormatForContract(mockProof(), []string{"1", "2", "3"})
	require.Error(t, err)
	_, err = FormatForContract(mockProof(), make([]string, 9))
	require.Error(t, err)
}
