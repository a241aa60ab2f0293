package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Flags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("stage"))
	require.NotNil(t, runCmd.Flags().Lookup("force-restart"))

	stage := runCmd.Flags().Lookup("stage")
	assert.Equal(t, "", stage.DefValue)

	forceRestart := runCmd.Flags().Lookup("force-restart")
	assert.Equal(t, "false", forceRestart.DefValue)
}
