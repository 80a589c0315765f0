package model

// Score is one member's claimed-marker count
type Score struct {
	ID    IdentityToken
	Score int
}

// ProgressOutcome describes an accepted progress claim
type ProgressOutcome struct {
	Room          *Room
	From          IdentityToken
	Found         int
	CurrentTarget int
	Scores        []Score

	// Completed is set when the claim moved the cursor past ActivityLength
	Completed bool
	Winner    IdentityToken
}
