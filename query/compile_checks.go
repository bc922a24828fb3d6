package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-square/core"
)

var (
	_ gocmd.Querier[GetCredentialMessage, CredentialView]  = (*GetCredentialQuery)(nil)
	_ gocmd.Querier[GetSubmissionMessage, core.Submission] = (*GetSubmissionQuery)(nil)
	_ gocmd.Querier[ListLocationsMessage, []core.Location] = (*ListLocationsQuery)(nil)
)
