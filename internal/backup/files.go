package backup

import (
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fittrack/internal/workout"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
)

func fileBaseName(prefix string, baseTime time.Time) string {
	return fmt.Sprintf("%s-%d-%d-%d", prefix, baseTime.Day(), baseTime.Month(), baseTime.Year())
}

// nextBackupFileName picks a base name no existing file starts with.
func nextBackupFileName(baseTime time.Time, existing []string) string {
	base := fileBaseName("workouts", baseTime)
	candidate := base
	for counter := 2; nameTaken(candidate, existing); counter++ {
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
	return candidate
}

func nameTaken(baseName string, existing []string) bool {
	for _, name := range existing {
		if strings.HasPrefix(name, baseName+"_") {
			return true
		}
	}
	return false
}

func backupFileNames(files []*drive.File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func lastBackupTime(files []*drive.File) time.Time {
	last := time.Time{}
	for _, f := range files {
		createdAt, err := time.Parse(time.RFC3339, f.CreatedTime)
		if err != nil {
			log.Errorf("parse created time for backup file %s: %s", f.Name, err)
			continue
		}
		if createdAt.After(last) {
			last = createdAt
		}
	}
	return last
}

func createdAfter(workouts []workout.Workout, since time.Time) []workout.Workout {
	var out []workout.Workout
	for _, w := range workouts {
		if w.CreatedAt.After(since) {
			out = append(out, w)
		}
	}
	return out
}

func chunk(workouts []workout.Workout, size int) [][]workout.Workout {
	var chunks [][]workout.Workout
	for from := 0; from < len(workouts); from += size {
		to := from + size
		if to > len(workouts) {
			to = len(workouts)
		}
		chunks = append(chunks, workouts[from:to])
	}
	return chunks
}
