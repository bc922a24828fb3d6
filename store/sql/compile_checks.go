package sqlstore

import "github.com/goliatone/go-square/core"

var (
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.SubmissionStore        = (*SubmissionStore)(nil)
	_ core.LocationLister         = (*CachedLocationLister)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
