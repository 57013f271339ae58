package mongo

const (
	CollectionUsers       = "users"
	CollectionCollections = "collections"
	CollectionPolls       = "polls"
	CollectionChoices     = "choices"
)

// lastVoteKey is the dotted path of a user's entry in a poll's lastVote map.
// Hex ids never contain '.' or '$'.
func lastVoteKey(userHex string) string {
	return "lastVote." + userHex
}
