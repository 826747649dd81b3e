package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/domain"
)

// photoFetchLimit caps how much of a stored photo is pulled back for ID-card
// composition. Twice the upload cap leaves headroom for stores that recode.
const photoFetchLimit = 8 << 20

// GenerateIDCard composes an ID-card image for one student and returns it as
// a data URI. The stored photo is fetched and inlined; a student without a
// photo (or an unreachable blob) gets the placeholder indicator instead.
// A single attempt, no internal retry: a failed composition surfaces to the
// caller, who retries by invoking again.
func (a *App) GenerateIDCard(ctx context.Context, sess *Session, targetOwnerID, studentID, logoDataURI string) (string, error) {
	if a.idCards == nil {
		return "", ErrIDCardsNotConfigured
	}
	owner, err := a.resolveOwner(sess, targetOwnerID)
	if err != nil {
		return "", err
	}
	st, found, err := a.store.GetStudent(owner, studentID)
	if err != nil {
		return "", fmt.Errorf("load student: %w", err)
	}
	if !found {
		return "", ErrStudentNotFound
	}
	school, found, err := a.store.GetSchool(owner, st.SchoolID)
	if err != nil {
		return "", fmt.Errorf("load school: %w", err)
	}
	if !found {
		return "", ErrSchoolNotFound
	}

	fields := domain.IDCardFields{
		SchoolName:    school.Name,
		StudentName:   st.Name,
		FatherName:    st.FatherName,
		ClassName:     st.ClassName,
		RollNumber:    st.RollNumber,
		DateOfBirth:   st.DateOfBirth,
		Address:       st.Address,
		ContactNumber: st.ContactNumber,
		PhotoDataURI:  a.photoDataURI(ctx, st),
		LogoDataURI:   logoDataURI,
	}
	return a.idCards.Compose(ctx, fields)
}

// photoDataURI pulls the student's stored photo and inlines it as a data URI.
// Any failure falls back to the placeholder indicator; composition proceeds
// without the photo rather than failing the card.
func (a *App) photoDataURI(ctx context.Context, st domain.Student) string {
	if st.PhotoAssetRef == "" {
		return domain.PlaceholderPhotoURL
	}
	url := a.photos.PreviewURL(st.PhotoAssetRef)
	if url == "" {
		return domain.PlaceholderPhotoURL
	}
	logger := util.LoggerFromContext(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Warn("build photo request failed", "url", url, "error", err)
		return domain.PlaceholderPhotoURL
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		logger.Warn("fetch photo failed", "url", url, "error", err)
		return domain.PlaceholderPhotoURL
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warn("fetch photo failed", "url", url, "status", resp.StatusCode)
		return domain.PlaceholderPhotoURL
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, photoFetchLimit))
	if err != nil {
		logger.Warn("read photo failed", "url", url, "error", err)
		return domain.PlaceholderPhotoURL
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
