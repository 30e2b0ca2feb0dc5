package proxyctl

// Indirection layer to allow stubbing in tests

var (
	fnCheck  = checkGateway
	fnModels = listModels
	fnChat   = chatOnce
	fnUsage  = showUsage
)
