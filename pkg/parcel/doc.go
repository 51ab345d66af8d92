// Package parcel defines the parcel document model and its JSON codec.
//
// # Document Format
//
// A document is a single JSON array of parcel objects:
//
//	[
//	  {
//	    "id": "17",
//	    "name": "Участок 17",
//	    "status": "Свободен",
//	    "purpose": "ИЖС",
//	    "area": "12 соток",
//	    "areaValue": 1200,
//	    "price": "1 200 000 ₽",
//	    "coords": [[44.9901, 43.1742], [44.9901, 43.1738], ...]
//	  }
//	]
//
// Recognized fields are id, name, purpose, status, area, areaValue and
// coords. Everything else (price, cadastral data, comments) is carried
// through untouched, and every record keeps its original key order on
// write. Only [Parcel.SetGeometry] changes what a record serializes to.
//
// # Validation
//
// [Decode] checks the shape of the document against an embedded JSON
// Schema before building any Parcel. A document that is not an array of
// objects, or whose coords are not [x, y] number pairs, is rejected with
// an errors.ErrCodeMalformedDocument error. Duplicate ids are rejected the
// same way.
//
// # Coordinates
//
// Coords are stored as an [orb.Ring]: x is the longitude-like easting and y
// the latitude-like northing.
//
// [orb.Ring]: github.com/paulmach/orb.Ring
package parcel
