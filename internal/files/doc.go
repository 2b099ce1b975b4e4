// Package files groups the source-file concerns of a load run.
//
//   - filesystem: filesystem abstraction (OS and in-memory)
//   - scanner: recursive discovery of .csv and .xlsx files
//   - reader: parsing a discovered file into a normalized batch
package files
