package library

import "readlog/pkg/domain"

var seedBooks = []domain.Book{
	{
		ID:     1,
		Title:  "1984",
		Author: "George Orwell",
		Status: domain.StatusFinished,
		Cover:  "https://covers.openlibrary.org/b/id/10521279-M.jpg",
	},
	{
		ID:     2,
		Title:  "The Pragmatic Programmer",
		Author: "Andrew Hunt, David Thomas",
		Status: domain.StatusReading,
		Cover:  "https://covers.openlibrary.org/b/id/12629965-M.jpg",
	},
	{
		ID:     3,
		Title:  "El nombre de la rosa",
		Author: "Umberto Eco",
		Status: domain.StatusToRead,
		Cover:  "https://covers.openlibrary.org/b/id/8373226-M.jpg",
	},
}

// SeedBooks returns a fresh copy of the built-in reading list.
func SeedBooks() []domain.Book {
	out := make([]domain.Book, len(seedBooks))
	copy(out, seedBooks)
	return out
}
