package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github/chirauki/aws-k3s-infra/config"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStackFile(t *testing.T, content string) *rootOptions {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Pulumi.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &rootOptions{stackFile: path, project: config.DefaultProject, logLevel: "error"}
}

func run(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlan(t *testing.T) {
	opts := writeStackFile(t, "config:\n  aws:region: ap-southeast-1\n")

	out, err := run(t, newPlanCmd(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "wave 1:\n  my-vpc")
	assert.Contains(t, out, "wave 3:")
	assert.NotContains(t, out, "wave 4:")
	assert.Regexp(t, `igw-route\s+route\s+<- public-route-table, internet-gateway`, out)
	assert.Regexp(t, `worker3InstanceIp\s+worker3-instance.public-ip`, out)
}

func TestValidate_SubnetOutsideVpc(t *testing.T) {
	opts := writeStackFile(t, `
config:
  aws-k3s-infra:config:
    vpc:
      cidr: 10.0.0.0/16
      subnet:
        cidr: 172.16.0.0/24
`)

	_, err := run(t, newValidateCmd(opts))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not within")
}

func TestGraph(t *testing.T) {
	opts := writeStackFile(t, "config: {}\n")

	out, err := run(t, newGraphCmd(opts))
	require.NoError(t, err)
	assert.Contains(t, out, `"master-instance" -> "public-secgrp";`)
	assert.Contains(t, out, `"public-route-table-association" -> "public-subnet";`)
}

func TestLoad_MissingFile(t *testing.T) {
	opts := &rootOptions{stackFile: filepath.Join(t.TempDir(), "nope.yaml"), project: config.DefaultProject}
	_, _, err := opts.load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading stack file")
}
