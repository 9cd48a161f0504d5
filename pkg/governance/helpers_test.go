package governance

func bal(v uint64) Balance { return NewBalance(v) }

func decided(id ReferendumID, track TrackID, at BlockNumber) Referendum {
	return Referendum{ID: id, Track: track, Timeline: []TimelineEntry{
		{State: StateCreated, Block: 1},
		{State: StateApproved, Block: at},
	}}
}

func ongoing(id ReferendumID, track TrackID, created BlockNumber) Referendum {
	return Referendum{ID: id, Track: track, Timeline: []TimelineEntry{{State: StateCreated, Block: created}}}
}

func refs(rs ...Referendum) map[ReferendumID]Referendum {
	out := make(map[ReferendumID]Referendum, len(rs))
	for _, r := range rs {
		out[r.ID] = r
	}
	return out
}

func sumChunks(s ClaimSchedule) Balance {
	var total Balance
	for _, c := range s.Chunks {
		total = AddBalance(total, c.Amount)
	}
	return total
}

// twoTrackSnapshot locks 100 on track 0 until block 500 and 50 on track 1
// until block 800, both with no conviction.
func twoTrackSnapshot(head BlockNumber) Snapshot {
	return Snapshot{
		Head: head,
		Voting: map[TrackID]Voting{
			0: {Votes: []Vote{StandardVote(1, 0, bal(100), None)}},
			1: {Votes: []Vote{StandardVote(2, 1, bal(50), None)}},
		},
		Referenda:         refs(decided(1, 0, 500), decided(2, 1, 800)),
		Tracks:            map[TrackID]TrackInfo{0: {ID: 0, Name: "root", UndecidingTimeout: 1000}, 1: {ID: 1, Name: "whitelisted_caller", UndecidingTimeout: 1000}},
		VoteLockingPeriod: 100,
		TrackLocks:        map[TrackID]Balance{0: bal(100), 1: bal(50)},
	}
}
