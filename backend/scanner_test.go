package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScannerWithoutAddressSkips(t *testing.T) {
	scanner, err := NewScanner("")
	require.NoError(t, err)

	status, _ := scanner.ScanBytes("a.txt", []byte("hello"))
	require.Equal(t, ScanStatusSkipped, status)

	var nilScanner *ClamdScanner
	status, _ = nilScanner.ScanBytes("a.txt", []byte("hello"))
	require.Equal(t, ScanStatusSkipped, status)
}
