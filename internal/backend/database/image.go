package database

type Image struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Filename    string `db:"filename"`     // asset file the image was seeded from, empty for uploads
	ContentType string `db:"content_type"` // MIME type of Payload
	Payload     []byte `db:"payload"`      // raw image data stored as binary
}

type Showcase struct {
	ID       string   `db:"id"`
	Title    string   `db:"title"`
	Rank     string   `db:"rank"` // LexoRank string ordering showcases; assigned on insert when empty
	ImageIDs []string // ordered, first entry is shown first
}

// AvatarKey is the fixed key of the singleton avatar record
const AvatarKey = "user"

type Avatar struct {
	Key         string `db:"key"`
	ID          string `db:"id"`
	ContentType string `db:"content_type"`
	Payload     []byte `db:"payload"`
}
