package rpc

// Chain-state gateway paths. Every endpoint takes a JSON POST body.
const (
	// Chain
	headPath      = "/v1/query/height"
	blockTimePath = "/v1/query/block-time"

	// Governance
	govParamsPath  = "/v1/gov/params"
	tracksPath     = "/v1/gov/tracks"
	referendaPath  = "/v1/gov/referenda"
	votingPath     = "/v1/gov/voting"
	trackLocksPath = "/v1/gov/track-locks"

	// Account
	balanceLocksPath = "/v1/query/balance-locks"
	accountPath      = "/v1/query/account"
)
