// GeoGate - grounded geo-compliance classification
package main

func main() {
	Execute()
}
