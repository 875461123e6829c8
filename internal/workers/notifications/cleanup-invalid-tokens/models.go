package cleanupinvalidtokens

type Input struct{}

type Output struct {
	Success       bool `json:"success"`
	CheckedTokens int  `json:"checkedTokens"`
	RemovedTokens int  `json:"removedTokens"`
	FailedBatches int  `json:"failedBatches"`
}
