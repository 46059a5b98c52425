package models

// Typed payloads for the tracked tables. Rows are stored as JSON documents;
// these structs define what a valid document looks like.

type Event struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string   `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string   `json:"end_time" validate:"required,datetime=15:04"`
	Description string   `json:"description,omitempty" validate:"max=5000"`
	SectionID   string   `json:"section_id,omitempty" validate:"omitempty,uuid"`
	LocationID  string   `json:"location_id,omitempty" validate:"omitempty,uuid"`
	SpeakerIDs  []string `json:"speaker_ids,omitempty" validate:"omitempty,dive,uuid"`
}

type Person struct {
	Name     string `json:"name" validate:"required,max=200"`
	Role     string `json:"role" validate:"required,oneof=speaker attendee"`
	Title    string `json:"title,omitempty" validate:"max=200"`
	Company  string `json:"company,omitempty" validate:"max=200"`
	Bio      string `json:"bio,omitempty" validate:"max=5000"`
	Country  string `json:"country,omitempty" validate:"max=100"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Mobile   string `json:"mobile,omitempty" validate:"max=50"`
	PhotoURL string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

type Location struct {
	Name    string `json:"name" validate:"required,max=200"`
	Link    string `json:"link,omitempty" validate:"omitempty,url"`
	Address string `json:"address,omitempty" validate:"max=500"`
}

type Section struct {
	Name string `json:"name" validate:"required,max=200"`
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type Resource struct {
	Name        string `json:"name" validate:"required,max=200"`
	Link        string `json:"link" validate:"required,url"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	IsRoute     bool   `json:"is_route"`
}

type Announcement struct {
	PersonID    string `json:"person_id" validate:"required,uuid"`
	Content     string `json:"content" validate:"required,max=5000"`
	PublishedAt string `json:"published_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type SocialPost struct {
	AuthorID  string   `json:"author_id" validate:"required,uuid"`
	Content   string   `json:"content" validate:"required,max=5000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
}

type MarkdownPage struct {
	Slug      string `json:"slug" validate:"required,max=100"`
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	Published bool   `json:"published"`
}

// NewPayload returns an empty typed payload for table t, or nil when t is
// not a tracked table.
func NewPayload(t TableName) any {
	switch t {
	case TableEvents:
		return &Event{}
	case TablePeople:
		return &Person{}
	case TableLocations:
		return &Location{}
	case TableSections:
		return &Section{}
	case TableResources:
		return &Resource{}
	case TableAnnouncements:
		return &Announcement{}
	case TableSocialPosts:
		return &SocialPost{}
	case TableMarkdownPages:
		return &MarkdownPage{}
	default:
		return nil
	}
}
