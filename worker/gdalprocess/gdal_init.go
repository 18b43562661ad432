package gdalprocess

import (
	"sync"

	"github.com/airbusgeo/godal"
	log "github.com/sirupsen/logrus"
)

var registerOnce sync.Once

// RegisterGDALDrivers registers all GDAL drivers once per process.
func RegisterGDALDrivers() {
	registerOnce.Do(func() {
		godal.RegisterAll()
		log.WithField("component", "gdalprocess").Debug("gdal drivers registered")
	})
}

// DefaultCOGConfig tunes the curl virtual file system for range reads
// of cloud optimized GeoTIFFs.
var DefaultCOGConfig = []string{
	"GDAL_DISABLE_READDIR_ON_OPEN=EMPTY_DIR",
	"CPL_VSIL_CURL_ALLOWED_EXTENSIONS=.tif,.tiff,.TIF",
	"GDAL_HTTP_MULTIRANGE=YES",
	"GDAL_HTTP_MERGE_CONSECUTIVE_RANGES=YES",
	"VSI_CACHE=TRUE",
}
