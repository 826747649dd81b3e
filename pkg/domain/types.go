package domain

// Identity is the signed-in principal supplied by the external identity
// provider. Only ID is persisted by this service (as the owner key).
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// UserProfile mirrors an identity in the user_profiles collection.
// Created lazily on first sign-in; never deleted.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// School is owned by exactly one user. ClassNames holds deduplicated
// free-form class labels, usually drawn from PredefinedClasses.
type School struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"ownerId"`
	Name       string   `json:"name"`
	ClassNames []string `json:"classNames"`
}

// Student belongs to a School under the same owner. PhotoAssetRef is the
// opaque blob id in the photo store; empty means no photo.
type Student struct {
	ID            string `json:"id"`
	OwnerID       string `json:"ownerId"`
	SchoolID      string `json:"schoolId"`
	ClassName     string `json:"className"`
	Name          string `json:"name"`
	FatherName    string `json:"fatherName"`
	RollNumber    string `json:"rollNumber"`
	DateOfBirth   string `json:"dateOfBirth"` // YYYY-MM-DD, no time component
	Address       string `json:"address"`
	ContactNumber string `json:"contactNumber"`
	PhotoAssetRef string `json:"photoAssetRef,omitempty"`
}

// IDCardFields is the normalized input to the ID-card composition call.
type IDCardFields struct {
	SchoolName    string `json:"schoolName"`
	StudentName   string `json:"studentName"`
	FatherName    string `json:"fatherName"`
	ClassName     string `json:"className"`
	RollNumber    string `json:"rollNumber"`
	DateOfBirth   string `json:"dateOfBirth"`
	Address       string `json:"address"`
	ContactNumber string `json:"contactNumber"`
	PhotoDataURI  string `json:"photoDataUri"`
	LogoDataURI   string `json:"logoDataUri"`
}

// PlaceholderPhotoURL is returned for students without a stored photo.
const PlaceholderPhotoURL = "https://placehold.co/80x80.png?text=No+Photo"

// PredefinedClasses is the default class-label catalog offered when a
// school is created. Schools may carry labels outside this list.
var PredefinedClasses = []string{
	"Nursery", "LKG", "UKG",
	"1st Grade", "2nd Grade", "3rd Grade", "4th Grade", "5th Grade",
	"6th Grade", "7th Grade", "8th Grade", "9th Grade", "10th Grade",
	"11th Grade", "12th Grade",
}
