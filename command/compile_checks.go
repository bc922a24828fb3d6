package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AuthorizeMessage]         = (*AuthorizeCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage]  = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[RefreshMessage]           = (*RefreshCommand)(nil)
	_ gocmd.Commander[RevokeMessage]            = (*RevokeCommand)(nil)
	_ gocmd.Commander[DeleteCredentialMessage]  = (*DeleteCredentialCommand)(nil)
	_ gocmd.Commander[ConfigureLocationMessage] = (*ConfigureLocationCommand)(nil)
	_ gocmd.Commander[SubmitOrderMessage]       = (*SubmitOrderCommand)(nil)
)
