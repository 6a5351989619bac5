package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/internal/security"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Imports weighted questions from an xlsx workbook. One sheet per theme;
// the sheet name becomes the theme title. Expected columns:
//
//	A: question text
//	B, D, F, H, J, L: answer text
//	C, E, G, I, K, M: answer score
//
// Answer columns come in pairs; blank pairs are skipped. Scores for one
// question should sum to 100 but the importer only warns, it does not
// reject.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if len(os.Args) < 2 {
		log.Fatal("usage: import_questions <file.xlsx>")
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	f, err := excelize.OpenFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	totalImported := 0

	for _, sheetName := range f.GetSheetList() {
		fmt.Printf("Importing sheet: %s\n", sheetName)

		// Workbook content is untrusted input; titles go through the same
		// sanitizer as the admin API before touching the catalog.
		title := security.SanitizeQuestionText(sheetName)
		if title == "" {
			fmt.Printf("Sheet %q has no usable title, skipping\n", sheetName)
			continue
		}

		var theme models.Theme
		err := db.Where("title = ?", title).
			Attrs(models.Theme{Title: title}).
			FirstOrCreate(&theme).Error
		if err != nil {
			fmt.Printf("Error creating theme %s: %v\n", title, err)
			continue
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			fmt.Printf("Error reading sheet %s: %v\n", sheetName, err)
			continue
		}

		for i, row := range rows {
			if i == 0 || len(row) < 3 {
				continue
			}
			questionTitle := security.SanitizeQuestionText(row[0])
			if questionTitle == "" {
				continue
			}

			answers, total := parseAnswers(row[1:])
			if len(answers) == 0 {
				fmt.Printf("Row %d has no valid answers, skipping\n", i+1)
				continue
			}
			if total != 100 {
				fmt.Printf("Warning: row %d answer scores sum to %d, not 100\n", i+1, total)
			}

			question := models.Question{
				ThemeID: theme.ID,
				Title:   questionTitle,
				Answers: answers,
			}

			if err := db.Create(&question).Error; err != nil {
				fmt.Printf("Error creating question in row %d: %v\n", i+1, err)
			} else {
				totalImported++
			}
		}
	}

	fmt.Printf("Successfully imported %d questions.\n", totalImported)
}

func parseAnswers(cells []string) ([]models.Answer, int) {
	var answers []models.Answer
	total := 0

	for j := 0; j+1 < len(cells); j += 2 {
		title := security.SanitizeQuestionText(cells[j])
		if title == "" {
			continue
		}
		score, err := strconv.Atoi(strings.TrimSpace(cells[j+1]))
		if err != nil || score <= 0 {
			continue
		}
		answers = append(answers, models.Answer{Title: title, Score: score})
		total += score
	}

	return answers, total
}
