package converter

import (
	"studio/internal/entity/db"
	"studio/internal/entity/dto"
)

// GenerationToDTO 将 db.Generation 转换为 dto.Generation。
// publicURL 用于将存储路径转换为公开 URL。
func GenerationToDTO(g *db.Generation, publicURL func(path string) string) dto.Generation {
	if g == nil {
		return dto.Generation{}
	}

	imageURL := ""
	if g.ImagePath != "" && publicURL != nil {
		imageURL = publicURL(g.ImagePath)
	}

	ref := g.RefData.Data()
	if ref.Mode == "" {
		ref.Mode = dto.GenerationMode(g.Mode)
	}

	return dto.Generation{
		ID:           g.ID,
		ShotID:       g.ShotID,
		ImageURL:     imageURL,
		Prompt:       g.Prompt,
		Model:        g.Model,
		Resolution:   g.Resolution,
		AspectRatio:  g.AspectRatio,
		Status:       dto.ParseStatus(g.Status),
		ErrorMessage: g.ErrorMessage,
		RequestedBy:  g.RequestedBy,
		CreatedAt:    g.CreatedAt,
		RefData:      &ref,
	}
}

// GenerationsToDTOs converts a slice of db.Generation to dto.Generation.
func GenerationsToDTOs(generations []db.Generation, publicURL func(path string) string) []dto.Generation {
	dtos := make([]dto.Generation, len(generations))
	for i := range generations {
		dtos[i] = GenerationToDTO(&generations[i], publicURL)
	}
	return dtos
}

// ShotToDTO converts db.Shot to dto.Shot.
func ShotToDTO(s *db.Shot) dto.Shot {
	if s == nil {
		return dto.Shot{}
	}
	return dto.Shot{
		ID:             s.ID,
		StoryboardURL:  s.StoryboardURL,
		StyleURL:       s.StyleURL,
		BackgroundURLs: s.BackgroundURLs.ToSlice(),
	}
}
