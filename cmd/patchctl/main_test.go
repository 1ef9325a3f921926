package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandWiresAllSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["patch"])
	assert.True(t, names["login"])
	assert.True(t, names["play"])
	assert.True(t, names["genpatch"])
}

func TestPatchCommandRejectsMissingInstallDir(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"patch"})
	err := cmd.Execute()
	assert.Error(t, err)
}
