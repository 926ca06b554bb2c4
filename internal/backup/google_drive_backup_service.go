package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/fittrack/internal/workout"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	rootBackupsFolderName = "fittrack-workouts-backup"
	workoutsFileChunkSize = 200 // number of workouts in one backup file
	folderMimeType        = "application/vnd.google-apps.folder"
)

type workoutSource interface {
	ListAll(ctx context.Context) ([]workout.Workout, error)
}

type GoogleDriveBackupService struct {
	workouts        workoutSource
	service         *drive.Service
	backupsFolderId string
	readerEmail     string
}

// NewGoogleDriveBackupService finds the backups folder, or creates it. If
// readerEmail is set, every created file is shared with it.
func NewGoogleDriveBackupService(
	ctx context.Context,
	credentialsJson []byte,
	workouts workoutSource,
	readerEmail string,
) (*GoogleDriveBackupService, error) {
	driveService, err := drive.NewService(ctx, option.WithCredentialsJSON(credentialsJson))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve drive client: %w", err)
	}

	s := &GoogleDriveBackupService{
		workouts:    workouts,
		service:     driveService,
		readerEmail: readerEmail,
	}

	rootFolderQuery := fmt.Sprintf("mimeType = '%s' and trashed = false and name = '%s'", folderMimeType, rootBackupsFolderName)
	backupFolders, err := driveService.
		Files.List().
		Q(rootFolderQuery).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	switch len(backupFolders.Files) {
	case 0:
		log.Println("root backups folder not found, recreating ...")
		s.backupsFolderId, err = s.createRootBackupsFolder(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create root backups folder: %w", err)
		}
		log.Printf("new root backups folder created: %s", s.backupsFolderId)
	case 1:
		s.backupsFolderId = backupFolders.Files[0].Id
		log.Printf("found backups folder ID: %s", s.backupsFolderId)
	default:
		s.backupsFolderId = backupFolders.Files[0].Id
		log.Warnf("found %d root backups folders, will take the first one: %s", len(backupFolders.Files), s.backupsFolderId)
	}

	return s, nil
}

// Reinit drops the backups folder and backs everything up from scratch.
func (s *GoogleDriveBackupService) Reinit(ctx context.Context, baseTime time.Time) error {
	log.Println("workouts backup reinit starting ...")

	if err := s.service.Files.Delete(s.backupsFolderId).Context(ctx).Do(); err != nil {
		return err
	}

	backupsFolderId, err := s.createRootBackupsFolder(ctx)
	if err != nil {
		return fmt.Errorf("failed to create root backups folder: %w", err)
	}
	log.Printf("new root backups folder created: %s", backupsFolderId)
	s.backupsFolderId = backupsFolderId

	return s.DoBackup(ctx, baseTime)
}

// DoBackup uploads the workouts saved since the newest backup file.
func (s *GoogleDriveBackupService) DoBackup(ctx context.Context, baseTime time.Time) error {
	currentBackupFiles, err := s.backupFiles(ctx)
	if err != nil {
		return err
	}

	all, err := s.workouts.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to get workouts from db: %w", err)
	}

	if len(currentBackupFiles) == 0 {
		log.Printf("backups empty, initial backup of %d workouts starting ...", len(all))
		return s.backupWorkouts(ctx, all, fileBaseName("initial", baseTime))
	}

	lastCreatedAt := lastBackupTime(currentBackupFiles)
	toBackup := createdAfter(all, lastCreatedAt)
	if len(toBackup) == 0 {
		log.Println("no new workouts to backup, done")
		return nil
	}

	log.Printf("backing up %d workouts since %v", len(toBackup), lastCreatedAt)
	nextName := nextBackupFileName(baseTime, backupFileNames(currentBackupFiles))
	if err := s.backupWorkouts(ctx, toBackup, nextName); err != nil {
		return fmt.Errorf("failed to backup workouts: %w", err)
	}

	log.Printf("next backup since %v successfully saved: %s", lastCreatedAt, nextName)
	return nil
}

func (s *GoogleDriveBackupService) createRootBackupsFolder(ctx context.Context) (string, error) {
	folder, err := s.service.
		Files.Create(&drive.File{
			Name:     rootBackupsFolderName,
			MimeType: folderMimeType,
		}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}

	if err := s.shareWithReader(ctx, folder.Id); err != nil {
		return folder.Id, fmt.Errorf("failed to create additional permission for root backup folder: %w", err)
	}
	return folder.Id, nil
}

func (s *GoogleDriveBackupService) backupWorkouts(ctx context.Context, workouts []workout.Workout, baseFileName string) error {
	for i, c := range chunk(workouts, workoutsFileChunkSize) {
		fileName := fmt.Sprintf("%s_%d.json", baseFileName, i+1)
		log.Printf("%s: creating backup file with %d workouts ...", fileName, len(c))

		chunkJson, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal workouts: %w", fileName, err)
		}

		created, err := s.service.
			Files.Create(&drive.File{
				Name:     fileName,
				MimeType: "application/json",
				Parents:  []string{s.backupsFolderId},
			}).
			Fields("id, parents").
			Media(bytes.NewReader(chunkJson)).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create workouts backup file: %w", fileName, err)
		}

		if err := s.shareWithReader(ctx, created.Id); err != nil {
			return fmt.Errorf("%s: failed to create additional permission: %w", fileName, err)
		}
		log.Printf("%s: backup file saved: %s", fileName, created.Id)
	}
	return nil
}

func (s *GoogleDriveBackupService) shareWithReader(ctx context.Context, fileId string) error {
	if s.readerEmail == "" {
		return nil
	}

	permission, err := s.service.Permissions.
		Create(fileId, &drive.Permission{
			EmailAddress: s.readerEmail,
			Type:         "user",
			Role:         "reader",
		}).
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	log.Debugf("permission %s created for %s", permission.Id, fileId)
	return nil
}

func (s *GoogleDriveBackupService) backupFiles(ctx context.Context) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", s.backupsFolderId, folderMimeType)
	backups, err := s.service.
		Files.List().
		Q(query).
		Fields("files(id, name, createdTime)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return backups.Files, nil
}

// DestroyAllFiles removes every backup file and folder the credentials can see.
func (s *GoogleDriveBackupService) DestroyAllFiles(ctx context.Context) error {
	files, err := s.service.Files.List().Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	for _, f := range files.Files {
		if err := s.service.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
			log.Errorf("delete %s (%s): %s", f.Name, f.Id, err)
			continue
		}
		log.Printf("deleted %s (%s)", f.Name, f.Id)
	}
	return nil
}
