package immich

import "time"

// Asset represents an Immich asset
type Asset struct {
	ID               string    `json:"id"`
	DeviceAssetID    string    `json:"deviceAssetId,omitempty"`
	OwnerID          string    `json:"ownerId,omitempty"`
	DeviceID         string    `json:"deviceId,omitempty"`
	LibraryID        string    `json:"libraryId,omitempty"`
	Type             string    `json:"type"` // IMAGE or VIDEO
	OriginalPath     string    `json:"originalPath"`
	OriginalFileName string    `json:"originalFileName"`
	OriginalMimeType string    `json:"originalMimeType,omitempty"`
	FileCreatedAt    time.Time `json:"fileCreatedAt"`
	IsFavorite       bool      `json:"isFavorite"`
	IsTrashed        bool      `json:"isTrashed,omitempty"`
	FileSize         int64     `json:"fileSizeInByte,omitempty"`
	ExifInfo         *ExifInfo `json:"exifInfo,omitempty"`
	DuplicateID      *string   `json:"duplicateId,omitempty"`
}

// SizeInBytes returns the file size reported in the EXIF block, falling back
// to the top-level field older servers send.
func (a Asset) SizeInBytes() int64 {
	if a.ExifInfo != nil && a.ExifInfo.FileSizeInByte > 0 {
		return a.ExifInfo.FileSizeInByte
	}
	return a.FileSize
}

// ExifInfo contains EXIF metadata
type ExifInfo struct {
	Make             string `json:"make,omitempty"`
	Model            string `json:"model,omitempty"`
	ExifImageWidth   int    `json:"exifImageWidth,omitempty"`
	ExifImageHeight  int    `json:"exifImageHeight,omitempty"`
	FileSizeInByte   int64  `json:"fileSizeInByte,omitempty"`
	Orientation      string `json:"orientation,omitempty"`
	DateTimeOriginal string `json:"dateTimeOriginal,omitempty"`
}

// DuplicateGroup is one entry of the server's duplicate detection results
type DuplicateGroup struct {
	DuplicateID string  `json:"duplicateId"`
	Assets      []Asset `json:"assets"`
}

// Person represents a recognised person
type Person struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsHidden   bool   `json:"isHidden,omitempty"`
	IsFavorite bool   `json:"isFavorite,omitempty"`
}

// AssetPage represents a paginated page of assets
type AssetPage struct {
	Assets      []Asset `json:"assets"`
	Page        int     `json:"page"`
	PageSize    int     `json:"pageSize"`
	TotalCount  int     `json:"totalCount"`
	HasNextPage bool    `json:"hasNextPage"`
}

// RandomSearchParams parameters for random asset search
type RandomSearchParams struct {
	PersonIDs   []string `json:"personIds,omitempty"`
	Type        string   `json:"type,omitempty"`
	WithDeleted bool     `json:"withDeleted"`
	Size        int      `json:"size"`
}
