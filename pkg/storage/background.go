package storage

import (
	"time"
)

// StartBackgroundWorkers starts the periodic snapshot worker when background
// saves and a data file are configured.
func (se *StorageEngine) StartBackgroundWorkers() {
	if !se.backgroundSave || se.dataFile == "" {
		return
	}

	se.backgroundWg.Add(1)
	go func() {
		defer se.backgroundWg.Done()
		ticker := time.NewTicker(se.saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := se.SaveToFile(se.dataFile); err != nil {
					se.logger.Error().Err(err).Str("file", se.dataFile).Msg("background save failed")
				}
			case <-se.stopChan:
				return
			}
		}
	}()
}

// StopBackgroundWorkers stops background workers and waits for them
func (se *StorageEngine) StopBackgroundWorkers() {
	se.stopOnce.Do(func() { close(se.stopChan) })
	se.backgroundWg.Wait()
}

// Close stops background work, writes a final snapshot when a data file is
// configured, and closes the journal.
func (se *StorageEngine) Close() error {
	se.StopBackgroundWorkers()

	var err error
	if se.dataFile != "" {
		err = se.SaveToFile(se.dataFile)
	}
	if se.journal != nil {
		if cerr := se.journal.Close(); err == nil {
			err = cerr
		}
		se.journal = nil
	}
	return err
}
